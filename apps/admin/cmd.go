package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
	"github.com/trezcool/edusource/core/user"
	"github.com/trezcool/edusource/storage"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	store     *storage.Engine
	courseSvc *course.Service
	enrollSvc *enrollment.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  grant -user ID -course ID [-payment PAYMENT_ID] - enroll a user by hand")
	fmt.Fprintln(cli.out, "  addcourse -title TITLE -type Free|Paid [-price PRICE] [-specialization S] [-author NAME] - create a course")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	grantCmd := flag.NewFlagSet("grant", flag.ContinueOnError)
	grantCmd.SetOutput(cli.out)
	grantUser := grantCmd.String("user", "", "The id of the user to enroll.")
	grantCourse := grantCmd.String("course", "", "The id of the course.")
	grantPayment := grantCmd.String("payment", "", "The gateway payment id, noted on the enrollment record.")

	addCourseCmd := flag.NewFlagSet("addcourse", flag.ContinueOnError)
	addCourseCmd.SetOutput(cli.out)
	addCourseTitle := addCourseCmd.String("title", "", "The course title.")
	addCourseType := addCourseCmd.String("type", "", "Free or Paid.")
	addCoursePrice := addCourseCmd.String("price", "0", "The price, in major units (e.g. 499.00).")
	addCourseDesc := addCourseCmd.String("description", "", "The short description.")
	addCourseSpec := addCourseCmd.String("specialization", "", "The specialization (category).")
	addCourseAuthor := addCourseCmd.String("author", "", "The author's name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "grant":
		if err := grantCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *grantUser == "" || *grantCourse == "" {
			grantCmd.Usage()
			return errHelp
		}
		return cli.grant(*grantUser, *grantCourse, *grantPayment)

	case "addcourse":
		if err := addCourseCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addCourseTitle == "" || *addCourseType == "" {
			addCourseCmd.Usage()
			return errHelp
		}
		price, err := decimal.NewFromString(*addCoursePrice)
		if err != nil {
			return errors.Wrapf(err, "invalid price %q", *addCoursePrice)
		}
		return cli.addCourse(course.NewCourse{
			Title:            *addCourseTitle,
			ShortDescription: *addCourseDesc,
			Specialization:   *addCourseSpec,
			AuthorName:       *addCourseAuthor,
			Price:            price,
			Type:             course.Type(*addCourseType),
		})

	default:
		cli.printUsage()
		return errHelp
	}
}

// grant enrolls userID in courseID, for users whose payment was captured but not verified.
func (cli *commandLine) grant(userID, courseID, paymentID string) error {
	ctx := context.Background()
	crs, err := cli.courseSvc.Get(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	rec, err := cli.enrollSvc.Grant(ctx, crs, userID, paymentID)
	if err != nil {
		return errors.Wrap(err, "granting enrollment")
	}
	if rec.Status == enrollment.StatusCompleted {
		cli.enrollSvc.Notify(ctx, user.User{ID: userID}, crs)
	}
	fmt.Fprintf(cli.out, "%s: user %s in %q (record %s)\n", rec.Status, rec.UserID, crs.Title, rec.ID)
	return nil
}

func (cli *commandLine) addCourse(nc course.NewCourse) error {
	crs, err := cli.courseSvc.Create(context.Background(), nc)
	if err != nil {
		if core.IsValidationError(err) {
			return errors.Wrap(err, "invalid course")
		}
		return errors.Wrap(err, "creating course")
	}
	fmt.Fprintf(cli.out, "created %s course %q: %s\n", crs.Type, crs.Title, crs.ID)
	return nil
}
