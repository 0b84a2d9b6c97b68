package binder

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	switch err.Tag() {
	case "httpurl":
		return fmt.Sprintf("%q must be an http or https URL", field)
	case "packageid":
		return fmt.Sprintf("%q may only contain letters, digits, dots, dashes and underscores", field)
	case "pkgversion":
		return fmt.Sprintf("%q may only contain letters, digits, dots, dashes and plus signs", field)
	case "max":
		return fmt.Sprintf("%q %s less than or equal to %s", field, boundPhrase(err), withUnit(err))
	case "min":
		return fmt.Sprintf("%q %s greater than or equal to %s", field, boundPhrase(err), withUnit(err))
	case "oneof":
		valids := make([]string, 0)
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	case "required":
		return fmt.Sprintf("%q is required", field)
	default:
		return fmt.Sprintf("%q failed the %q check", field, err.Tag())
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func boundPhrase(err validator.FieldError) string {
	if isNumeric(err.Kind()) {
		return "must be"
	}
	return "length must be"
}

func withUnit(err validator.FieldError) string {
	if isNumeric(err.Kind()) {
		return err.Param()
	}
	unit := "character"
	if err.Kind() == reflect.Slice {
		unit = "element"
	}
	if err.Param() != "1" {
		unit += "s"
	}
	return err.Param() + " " + unit
}
