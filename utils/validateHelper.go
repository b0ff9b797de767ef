package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New()

// ValidateStruct runs `validate` tags on inputs that skip gin's binding path
// (direct workflow callers, cmd tools).
func ValidateStruct(s interface{}) error {
	if err := structValidator.Struct(s); err != nil {
		return fmt.Errorf("%w: %s", ErrorInvalidInput, err.Error())
	}
	return nil
}

func DereferencePtr[T any](ptr *T, fallback ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(fallback) > 0 {
		return fallback[0]
	}
	return zero
}
