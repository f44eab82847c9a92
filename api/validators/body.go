package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/norberto-e-888/pos-app/pkg/enums"
	pkgerrors "github.com/norberto-e-888/pos-app/pkg/errors"
)

// MaxBodyBytes caps request bodies. Orders with many lines stay far below it.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their json names and adds the domain tags
// `category` and `role`.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := enums.ParseProductCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return enums.Role(fl.Field().String()).IsValid()
	})
	return v
}

// DecodeJSONBody reads exactly one JSON object into dest and validates it.
// Unknown fields, trailing data and oversized bodies are VALIDATION_ERRORs.
func DecodeJSONBody(r *http.Request, dest any) error {
	body := http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must hold a single JSON object")
	}
	return Validate(dest)
}

// DecodeOptionalJSONBody is DecodeJSONBody for endpoints whose body may be omitted.
func DecodeOptionalJSONBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return Validate(dest)
	}
	return DecodeJSONBody(r, dest)
}

// Validate runs the struct tags of dest.
func Validate(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = describe(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func decodeError(err error) error {
	var (
		tooLarge  *http.MaxBytesError
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	invalid := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	switch {
	case errors.As(err, &tooLarge):
		return invalid.WithDetails(map[string]any{"limitBytes": tooLarge.Limit})
	case errors.As(err, &typeErr):
		return invalid.WithDetails(map[string]string{typeErr.Field: "must be " + typeErr.Type.String()})
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return invalid.WithDetails(map[string]any{"error": "malformed JSON"})
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body is required")
	}
	return invalid.WithDetails(map[string]any{"error": err.Error()})
}

// fieldPath drops the root struct name: "items[0].quantity" instead of
// "createOrderRequest.items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must hold at least %s entries", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid uuid"
	case "oneof":
		return "must be one of " + fe.Param()
	case "category":
		return "must be one of electronics, clothing, food, books"
	case "role":
		return "must be customer or admin"
	}
	return "is invalid"
}
