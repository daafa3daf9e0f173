package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"jobscout/internal/discovery"
)

// ValidateSourceTag accepts one of the known source tags
func ValidateSourceTag(fl validator.FieldLevel) bool {
	_, err := discovery.ParseSourceTag(fl.Field().String())
	return err == nil
}

// RegisterDiscoverValidators registers the custom tags used by discover requests
func RegisterDiscoverValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("source_tag", ValidateSourceTag); err != nil {
		return fmt.Errorf("failed to register source_tag validator: %w", err)
	}
	return nil
}

// New returns a validator with the discover tags registered. It panics if
// registration fails, like regexp.MustCompile.
func New() *validator.Validate {
	v := validator.New()
	if err := RegisterDiscoverValidators(v); err != nil {
		panic(err)
	}
	return v
}
