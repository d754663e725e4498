package util

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mkline/civicsync/civic"
)

// reasons maps validator tags to human-readable messages for the tags used
// by the civicsync input structs.
var reasons = map[string]string{
	"required": "required",
	"email":    "must be a valid email address",
	"min":      "too short",
	"eqfield":  "does not match",
	"oneof":    "not an accepted value",
	"gte":      "too small",
	"gt":       "too small",
}

// AsValidationError converts a validator error into a *civic.ValidationError
// for the first failed field. Non-validator errors pass through unchanged.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	reason, ok := reasons[fe.Tag()]
	if !ok {
		reason = fe.Tag()
	}
	return &civic.ValidationError{
		Field:  strings.ToLower(fe.Field()),
		Reason: reason,
	}
}
