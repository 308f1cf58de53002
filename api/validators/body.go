package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/money"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		return money.HasAtMostCents(fl.Field().Float())
	})
	return v
}

// RegisterStructRule adds a cross-field rule for the given struct types.
func RegisterStructRule(fn validator.StructLevelFunc, types ...any) {
	validate.RegisterStructValidation(fn, types...)
}

// DecodeJSONBody decodes a strict JSON body into dest and validates it.
func DecodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cuerpo de la solicitud inválido").
			WithDetails([]types.FieldError{{Field: "body", Message: decodeMessage(err)}})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s tiene un tipo inválido", typeErr.Field)
	}
	return err.Error()
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make([]types.FieldError, 0, len(errs))
	for _, fieldErr := range errs {
		details = append(details, types.FieldError{
			Field:   fieldPath(fieldErr.Namespace()),
			Message: validationMessage(fieldErr),
		})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "Datos de la orden inválidos").WithDetails(details)
}

var leadingStruct = regexp.MustCompile(`^[^.]+\.`)

// fieldPath drops the root struct name so paths read like items[0].quantity.
func fieldPath(namespace string) string {
	return leadingStruct.ReplaceAllString(namespace, "")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_shipping":
		return "es requerido"
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("debe tener al menos %s caracteres", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("debe tener al menos %s elementos", fe.Param())
		}
		return fmt.Sprintf("debe ser al menos %s", fe.Param())
	case "max":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("debe tener como máximo %s caracteres", fe.Param())
		case reflect.Slice:
			return fmt.Sprintf("debe tener como máximo %s elementos", fe.Param())
		}
		return fmt.Sprintf("debe ser como máximo %s", fe.Param())
	case "gte":
		return fmt.Sprintf("debe ser mayor o igual a %s", fe.Param())
	case "lte":
		return fmt.Sprintf("debe ser menor o igual a %s", fe.Param())
	case "money":
		return "debe tener como máximo 2 decimales"
	case "uuid", "uuid4":
		return "debe ser un UUID válido"
	case "oneof":
		return fmt.Sprintf("debe ser uno de: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "debe ser un correo válido"
	}
	return "es inválido"
}
