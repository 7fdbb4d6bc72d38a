package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jborcher/vegfuel/internal/apperror"
)

// maxBodyBytes caps request bodies. A full day of log entries is well
// under this.
const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so messages match the wire format.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and runs its validate tags.
// Malformed JSON is a bad request; a tag failure is a validation error
// naming the first offending field.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.BadRequest("request body too large")
		}
		return apperror.BadRequest("request body must be valid JSON")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("handler: validating request: %w", err)
	}
	fe := verrs[0]
	return apperror.ValidationFailed(fieldPath(fe), fieldMessage(fe))
}

// fieldPath drops the root struct name from the namespace:
// "syncRequest.entries[0].ingredient_name" -> "entries[0].ingredient_name".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "max":
		return fmt.Sprintf("this field cannot be longer than %s", fe.Param())
	case "min":
		return fmt.Sprintf("this field must be at least %s long", fe.Param())
	case "gt":
		return fmt.Sprintf("this field must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("this field must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("this field must be one of: %s", fe.Param())
	case "datetime":
		return "date must be YYYY-MM-DD"
	}
	return fmt.Sprintf("failed %q validation", fe.Tag())
}
