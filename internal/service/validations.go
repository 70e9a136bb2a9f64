package service

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	errorvalues "github.com/limbo/plankup/internal/error_values"
	"github.com/limbo/plankup/pkg/dateutil"
	"github.com/limbo/plankup/pkg/entity"
)

// Package for custom validations
var (
	validate *validator.Validate
	once     sync.Once
)

// MaxSessionDuration caps a single plank at 24 hours.
const MaxSessionDuration = 24 * 60 * 60

func InitValidator() {
	once.Do(func() {
		validate = validator.New()
		validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			if len(value) != 5 || value[2] != ':' {
				return false
			}
			for i, char := range value {
				if i != 2 && (char < '0' || char > '9') {
					return false
				}
			}
			hours, minutes := dateutil.ParseTimeString(value)
			return hours < 24 && minutes < 60
		})
	})
}

// ValidateSettingsPatch checks field ranges and the HH:MM reminder format.
func ValidateSettingsPatch(patch entity.SettingsPatch) error {
	InitValidator()
	if err := validate.Struct(patch); err != nil {
		return errors.Join(errorvalues.ErrInvalidInput, err)
	}
	return nil
}

func validateDuration(duration int) error {
	if duration < 0 || duration > MaxSessionDuration {
		return errorvalues.ErrInvalidInput
	}
	return nil
}
