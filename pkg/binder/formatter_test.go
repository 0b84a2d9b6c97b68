package binder

import (
	"reflect"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/stretchr/testify/assert"
)

type fakeFieldError struct {
	tag   string
	field string
	param string
	kind  reflect.Kind
}

func (e *fakeFieldError) Error() string                    { return "fake field error" }
func (e *fakeFieldError) Tag() string                      { return e.tag }
func (e *fakeFieldError) ActualTag() string                { return e.tag }
func (e *fakeFieldError) Namespace() string                { return "" }
func (e *fakeFieldError) StructNamespace() string          { return "" }
func (e *fakeFieldError) Field() string                    { return e.field }
func (e *fakeFieldError) StructField() string              { return "" }
func (e *fakeFieldError) Value() interface{}               { return "" }
func (e *fakeFieldError) Param() string                    { return e.param }
func (e *fakeFieldError) Kind() reflect.Kind               { return e.kind }
func (e *fakeFieldError) Type() reflect.Type               { return reflect.TypeOf("") }
func (e *fakeFieldError) Translate(_ ut.Translator) string { return "" }

func TestFormatValidationError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err      *fakeFieldError
		expected string
	}{
		{&fakeFieldError{"required", "path", "", reflect.String}, `"path" is required`},
		{&fakeFieldError{"max", "limit", "100", reflect.Int}, `"limit" must be less than or equal to 100`},
		{&fakeFieldError{"max", "name", "1", reflect.String}, `"name" length must be less than or equal to 1 character`},
		{&fakeFieldError{"min", "screenshots", "2", reflect.Slice}, `"screenshots" length must be greater than or equal to 2 elements`},
		{&fakeFieldError{"oneof", "source", "auto flathub", reflect.String}, `"source" must be one of the following: "auto", "flathub"`},
		{&fakeFieldError{"httpurl", "homepage", "", reflect.String}, `"homepage" must be an http or https URL`},
		{&fakeFieldError{"packageid", "package_id", "", reflect.String}, `"package_id" may only contain letters, digits, dots, dashes and underscores`},
		{&fakeFieldError{"pkgversion", "version", "", reflect.String}, `"version" may only contain letters, digits, dots, dashes and plus signs`},
		{&fakeFieldError{"uuid", "id", "", reflect.String}, `"id" failed the "uuid" check`},
	}

	for _, c := range cases {
		t.Run(c.err.tag+"/"+c.err.field, func(t *testing.T) {
			assert.Equal(t, c.expected, formatValidationError(c.err))
		})
	}
}
