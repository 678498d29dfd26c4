package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/dealiem-scraper/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateDocument checks a weekly document before it is persisted.
func (v *Validator) ValidateDocument(doc models.WeeklyDealDocument) error {
	return v.ValidateStruct(doc)
}
