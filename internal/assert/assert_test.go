package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type thing struct{}

func TestNotNil(t *testing.T) {
	var nilPointer *thing
	var nilFunc func()
	var nilMap map[string]int

	testCases := []struct {
		name   string
		value  any
		panics bool
	}{
		{name: "nil", value: nil, panics: true},
		{name: "typed nil pointer", value: nilPointer, panics: true},
		{name: "nil func", value: nilFunc, panics: true},
		{name: "nil map", value: nilMap, panics: true},
		{name: "pointer", value: &thing{}},
		{name: "struct", value: thing{}},
		{name: "func", value: func() {}},
		{name: "zero int", value: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.panics {
				require.PanicsWithValue(t, "expected value to be not nil", func() { NotNil("value", tc.value) })
				return
			}
			require.NotPanics(t, func() { NotNil("value", tc.value) })
		})
	}
}

func TestNotEmptyStr(t *testing.T) {
	require.PanicsWithValue(t, "expected show id to be non-empty", func() { NotEmptyStr("show id", "") })
	require.NotPanics(t, func() { NotEmptyStr("show id", "22980") })
}
