package course

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/edusource/core"
)

type Type string

// Course types
const (
	Free Type = "Free"
	Paid Type = "Paid"
)

func (t Type) Valid() bool {
	return t == Free || t == Paid
}

var (
	// OrderingFields are the fields courses can be ordered by.
	OrderingFields = []string{"title", "price", "created_at"}

	errInvalidType  = errors.New("type must be one of Free, Paid")
	errFreePriced   = errors.New("a free course cannot have a price")
	errPaidUnpriced = errors.New("a paid course must have a price greater than 0")
)

type (
	Course struct {
		ID               string          `json:"id"`
		Title            string          `json:"title"`
		ShortDescription string          `json:"shortDescription"`
		Description      string          `json:"description,omitempty"`
		Specialization   string          `json:"specialization,omitempty"`
		AuthorID         string          `json:"authorId,omitempty"`
		AuthorName       string          `json:"authorName,omitempty"`
		Price            decimal.Decimal `json:"price"`
		Type             Type            `json:"type"`
		EnrolledUsers    []string        `json:"-"` // never exposed, see EnrolledCount
		CreatedAt        time.Time       `json:"createdAt"`
		UpdatedAt        time.Time       `json:"updatedAt"`
	}

	NewCourse struct {
		Title            string          `json:"title" validate:"required,notblank"`
		ShortDescription string          `json:"shortDescription"`
		Description      string          `json:"description"`
		Specialization   string          `json:"specialization"`
		AuthorID         string          `json:"authorId"`
		AuthorName       string          `json:"authorName"`
		Price            decimal.Decimal `json:"price"`
		Type             Type            `json:"type" validate:"required,oneof=Free Paid"`
	}

	QueryFilter struct {
		Search         string
		Type           Type
		Specialization string
		EnrolledUser   string // courses whose EnrolledUsers contain this user id
	}
)

// Validate checks the pricing invariant: Free => price = 0, Paid => price > 0.
func (c Course) Validate() error {
	switch c.Type {
	case Free:
		if !c.Price.IsZero() {
			return core.NewValidationError(errFreePriced, core.FieldError{Field: "price", Error: errFreePriced.Error()})
		}
	case Paid:
		if !c.Price.IsPositive() {
			return core.NewValidationError(errPaidUnpriced, core.FieldError{Field: "price", Error: errPaidUnpriced.Error()})
		}
	default:
		return core.NewValidationError(errInvalidType, core.FieldError{Field: "type", Error: errInvalidType.Error()})
	}
	return nil
}

// MinorUnits returns the price in the currency's minor units (price x 100).
func (c Course) MinorUnits() int64 {
	return c.Price.Shift(2).Round(0).IntPart()
}

func (c Course) HasEnrolled(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range c.EnrolledUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func (c Course) EnrolledCount() int {
	return len(c.EnrolledUsers)
}

func (nc *NewCourse) clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.ShortDescription = core.CleanString(nc.ShortDescription)
	nc.Description = core.CleanString(nc.Description)
	nc.Specialization = core.CleanString(nc.Specialization)
	nc.AuthorName = core.CleanString(nc.AuthorName)
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.clean()
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return Course{Type: nc.Type, Price: nc.Price}.Validate()
}
