// internal/app/system/inputval/reflect.go
package inputval

import (
	"reflect"
	"strings"
)

// forEachTaggedField walks the exported string fields of a struct (or
// pointer to struct) and invokes fn for each field carrying a
// `validate` tag. The label defaults to the field name when no `label`
// tag is present.
func forEachTaggedField(input any, fn func(label, value string, rules []string)) {
	v := reflect.ValueOf(input)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.String {
			continue
		}
		tag := f.Tag.Get("validate")
		if tag == "" || tag == "-" {
			continue
		}
		label := f.Tag.Get("label")
		if label == "" {
			label = f.Name
		}
		fn(label, v.Field(i).String(), strings.Split(tag, ","))
	}
}
