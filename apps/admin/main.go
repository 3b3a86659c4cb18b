package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	emailsvc "github.com/trezcool/edusource/services/email"
	eventsvc "github.com/trezcool/edusource/services/events"
	logsvc "github.com/trezcool/edusource/services/logger"
	"github.com/trezcool/edusource/storage"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	core.ParseEmailTemplates(logger, conf.Debug)

	// set up storage; migrations are left to the migrate command
	ctx := context.Background()
	store, err := storage.Open(ctx, conf, false)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Database.Engine, err), err)
	}
	events, err := eventsvc.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up events publisher: %v", err), err)
	}

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	courseSvc := course.NewService(store.Courses, validate, conf)

	// start CLI
	cli := commandLine{
		store:     store,
		courseSvc: courseSvc,
		enrollSvc: enrollment.NewService(courseSvc, store.Enrollments, emailsvc.New(conf, logger), events, logger),
		out:       os.Stdout,
	}
	err = cli.run(os.Args)

	_ = events.Close()
	_ = store.Close(ctx)
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
