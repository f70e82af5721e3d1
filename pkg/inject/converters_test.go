package inject

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFilter string

const (
	testFilterNearest testFilter = "Nearest"
	testFilterLinear  testFilter = "Linear"
)

func TestSplitList(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected []string
	}{
		{"comma", "a,b,c", []string{"a", "b", "c"}},
		{"comma and space", "a,b, c", []string{"a", "b", "c"}},
		{"repeated separators", "a,,  b , ,c", []string{"a", "b", "c"}},
		{"trailing separators dropped", "a, b, ", []string{"a", "b"}},
		{"leading separator kept as empty token", ", a", []string{"", "a"}},
		{"no separator", "abc", []string{"abc"}},
		{"empty", "", []string{""}},
		{"only separators", ", ,", []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SplitList(tc.raw))
		})
	}
}

func TestDefaultRegistry_Convert(t *testing.T) {
	registry := NewDefaultRegistry()

	testCases := []struct {
		name     string
		rType    reflect.Type
		raw      string
		expected interface{}
	}{
		{"int32", reflect.TypeOf(int32(0)), "42", int32(42)},
		{"negative int32", reflect.TypeOf(int32(0)), "-7", int32(-7)},
		{"int", reflect.TypeOf(0), "2048", 2048},
		{"float32", reflect.TypeOf(float32(0)), "3.5", float32(3.5)},
		{"float64", reflect.TypeOf(float64(0)), "0.25", 0.25},
		{"bool true", reflect.TypeOf(false), "true", true},
		{"bool upper", reflect.TypeOf(false), "FALSE", false},
		{"string", reflect.TypeOf(""), "hello world", "hello world"},
		{"duration", reflect.TypeOf(time.Duration(0)), "150ms", 150 * time.Millisecond},
		{"string list", reflect.TypeOf([]string{}), "a,b, c", []string{"a", "b", "c"}},
		{"float list", reflect.TypeOf([]float32{}), "1, 0.5,0.25", []float32{1, 0.5, 0.25}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			converter, ok := registry.Lookup(tc.rType)
			require.True(t, ok, "no converter for %v", tc.rType)
			actual, err := converter.Convert(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
			assert.Equal(t, tc.rType, reflect.TypeOf(actual))
		})
	}
}

func TestDefaultRegistry_ConvertFailures(t *testing.T) {
	registry := NewDefaultRegistry()

	testCases := []struct {
		name  string
		rType reflect.Type
		raw   string
	}{
		{"int32 text", reflect.TypeOf(int32(0)), "abc"},
		{"int32 overflow", reflect.TypeOf(int32(0)), "4294967296"},
		{"int float literal", reflect.TypeOf(0), "1.5"},
		{"float32 text", reflect.TypeOf(float32(0)), "fast"},
		{"bool yes", reflect.TypeOf(false), "yes"},
		{"float list bad element", reflect.TypeOf([]float32{}), "1, x, 3"},
		{"float list leading separator", reflect.TypeOf([]float32{}), ",1"},
		{"float list empty", reflect.TypeOf([]float32{}), ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			converter, ok := registry.Lookup(tc.rType)
			require.True(t, ok)
			actual, err := converter.Convert(tc.raw)
			require.Error(t, err)
			assert.Nil(t, actual)
			var convErr *ConversionError
			assert.ErrorAs(t, err, &convErr)
			assert.Equal(t, tc.raw, convErr.Value)
		})
	}
}

func TestRegisterEnum(t *testing.T) {
	registry := NewRegistry()
	RegisterEnum(registry, testFilterNearest, testFilterLinear)

	converter, ok := registry.Lookup(reflect.TypeOf(testFilter("")))
	require.True(t, ok)

	v, err := converter.Convert("Linear")
	require.NoError(t, err)
	assert.Equal(t, testFilterLinear, v)

	for _, bad := range []string{"linear", "LINEAR", " Linear", "Bilinear", ""} {
		_, err := converter.Convert(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestRegistry_LookupAbsent(t *testing.T) {
	registry := NewDefaultRegistry()
	converter, ok := registry.Lookup(reflect.TypeOf(map[string]int{}))
	assert.False(t, ok)
	assert.Nil(t, converter)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	registry := NewDefaultRegistry()
	before := registry.Len()
	RegisterFunc(registry, func(raw string) (int32, error) { return 7, nil })
	assert.Equal(t, before, registry.Len())

	converter, _ := registry.Lookup(reflect.TypeOf(int32(0)))
	v, err := converter.Convert("anything")
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
}

func TestDescriptor(t *testing.T) {
	assert.Equal(t, "int32", Descriptor(reflect.TypeOf(int32(0))))
	assert.Equal(t, "[]float32", Descriptor(reflect.TypeOf([]float32{})))
	assert.Equal(t, "enum:inject.testFilter", Descriptor(reflect.TypeOf(testFilter(""))))
	assert.Equal(t, "string", Descriptor(reflect.TypeOf("")))
}
