// Package assert panics on programmer errors caught at construction time.
package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when value is nil, including typed nil pointers, maps, funcs and
// interfaces wrapping them.
func NotNil(name string, value any) {
	if isNil(value) {
		panic(fmt.Sprintf("expected %s to be not nil", name))
	}
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func NotEmptyStr(name, str string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", name))
	}
}
