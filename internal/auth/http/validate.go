package http

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aussiebroadwan/tollgate/pkg/authsdk"
	"github.com/aussiebroadwan/tollgate/pkg/httpx"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validate checks request DTOs. Field names in errors are the JSON names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// decodeRequest reads the JSON body into dst and validates it. It writes
// the 400 itself and reports false when the request is unusable.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		authsdk.ErrInvalidRequest.WithDetails(validationDetails(err)).WriteError(w)
		return false
	}
	return true
}

// validationDetails maps each failing field to a short message.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = "is required"
		case "email":
			out[e.Field()] = "must be a valid email address"
		case "min":
			out[e.Field()] = fmt.Sprintf("must be at least %s characters", e.Param())
		case "max":
			out[e.Field()] = fmt.Sprintf("must be at most %s characters", e.Param())
		case "username":
			out[e.Field()] = "may only contain letters, digits, '.', '_' and '-'"
		default:
			out[e.Field()] = "is invalid"
		}
	}
	return out
}
