package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	safeIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	safeURLPattern = regexp.MustCompile(`^https?://[^\s<>"']+$`)
)

// RegisterValidators installs the custom binding validators. Call once at
// startup before the router starts serving.
func RegisterValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("safe_id", func(fl validator.FieldLevel) bool {
		return safeIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("safe_url", func(fl validator.FieldLevel) bool {
		return safeURLPattern.MatchString(fl.Field().String())
	})
}

// SanitizeStruct trims and HTML-escapes every exported string field of the
// given struct pointer, including *string fields and nested structs.
func SanitizeStruct(s interface{}) {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	sanitizeValue(v.Elem())
}

func sanitizeValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if !f.CanSet() {
				continue
			}
			sanitizeValue(f)
		}
	case reflect.String:
		v.SetString(sanitizeString(v.String()))
	case reflect.Ptr:
		if !v.IsNil() {
			sanitizeValue(v.Elem())
		}
	}
}

func sanitizeString(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
