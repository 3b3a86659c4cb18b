package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/edusource/apps/api/echo"
	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/checkout"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	emailsvc "github.com/trezcool/edusource/services/email"
	eventsvc "github.com/trezcool/edusource/services/events"
	logsvc "github.com/trezcool/edusource/services/logger"
	metricsvc "github.com/trezcool/edusource/services/metrics"
	"github.com/trezcool/edusource/services/paybackend"
	"github.com/trezcool/edusource/storage"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	storageOut struct {
		dig.Out
		Engine      *storage.Engine
		Courses     course.Repository
		Enrollments enrollment.Repository
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newStorage opens the configured engine and exposes its repositories.
func newStorage(conf *core.Config, loggerParam DBLoggerParam) storageOut {
	engine, err := storage.Open(context.Background(), conf, true)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Database.Engine, err), err)
	}
	return storageOut{
		Engine:      engine,
		Courses:     engine.Courses,
		Enrollments: engine.Enrollments,
	}
}

func newEventPublisher(conf *core.Config, logger core.Logger) (eventsvc.Publisher, enrollment.EventPublisher) {
	pub, err := eventsvc.New(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up events publisher: %v", err), err)
	}
	return pub, pub
}

func newCourseStore(svc *course.Service) enrollment.CourseStore {
	return svc
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newCheckoutRegistry(
	conf *core.Config,
	logger core.Logger,
	metrics *metricsvc.Metrics,
	enrollSvc *enrollment.Service,
) *checkout.Registry {
	return checkout.NewRegistry(checkout.Deps{
		Backend:      paybackend.NewClient(conf),
		Gateway:      echoapi.NewHostedGateway(conf.Gateway.KeyID),
		Logger:       logger,
		Observer:     metrics,
		Currency:     conf.PaymentBackend.Currency,
		MerchantName: conf.Gateway.MerchantName,
		SupportEmail: conf.SupportEmail,
		Timeout:      conf.PaymentBackend.Timeout,
		OnEnrolled:   enrollSvc.OnPaidEnrollment,
	})
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	courseSvc *course.Service,
	enrollSvc *enrollment.Service,
	registry *checkout.Registry,
	metrics *metricsvc.Metrics,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        logger,
		CourseSvc:     courseSvc,
		EnrollmentSvc: enrollSvc,
		Checkouts:     registry,
		Metrics:       metrics,
		Validate:      validate,
		Translator:    translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(emailsvc.New))
	must(c.Provide(newEventPublisher))
	must(c.Provide(metricsvc.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(course.NewService))
	must(c.Provide(newCourseStore))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(newCheckoutRegistry))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
