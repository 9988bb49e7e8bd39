package utils

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

// Validator wraps go-playground/validator with json field names and readable messages.
type Validator struct {
	validator *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	customValidation(v)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// Validate returns nil or a validation AppError whose message is the first field error.
func (v *Validator) Validate(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs := v.Fields(err)
	if len(fieldErrs) == 0 {
		return Validation(err.Error())
	}
	details := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, fe.Msg)
	}
	return NewError(KindValidation, fieldErrs[0].Msg, strings.Join(details, "; "))
}

// Fields flattens validator errors into FieldError values.
func (v *Validator) Fields(err error) []FieldError {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		out = append(out, FieldError{
			Field: fe.Field(),
			Msg:   getErrorMessage(fe.Field(), fe.Tag(), fe.Param()),
		})
	}
	return out
}

func getErrorMessage(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of the following values: %s", field, param)
	case "httpurl":
		return fmt.Sprintf("%s must start with http:// or https://", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "dive":
		return fmt.Sprintf("%s contains an invalid item", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, tag)
	}
}

func customValidation(v *validator.Validate) {
	v.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return IsHTTPURL(fl.Field().String())
	})
}

// IsHTTPURL 仅允许 http/https 链接
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
