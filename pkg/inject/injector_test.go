package inject

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type packSettings struct {
	MaxWidth  int        `json:"maxWidth"`
	FilterMin testFilter `json:"filterMin"`
	Scale     []float32  `json:"scale"`
	Suffixes  []string   `json:"scaleSuffix"`
	Debug     bool
	Channels  map[string]int `json:"channels"`
	Ignored   string         `inject:"-"`

	quality float32
	name    string
}

func newPackSettings() *packSettings {
	return &packSettings{
		MaxWidth:  1024,
		FilterMin: testFilterNearest,
		Scale:     []float32{1},
		quality:   0.9,
		name:      "pack",
	}
}

func newTestRegistry() *Registry {
	registry := NewDefaultRegistry()
	RegisterEnum(registry, testFilterNearest, testFilterLinear)
	return registry
}

func TestInject_EndToEndScenario(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{
		"maxWidth":  "2048",
		"filterMin": "Linear",
		"bogusKey":  "x",
	}, newTestRegistry())
	require.NoError(t, err)

	assert.Equal(t, 2048, settings.MaxWidth)
	assert.Equal(t, testFilterLinear, settings.FilterMin)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, UnknownField, report.Warnings[0].Kind)
	assert.Equal(t, "bogusKey", report.Warnings[0].Field)
	assert.ElementsMatch(t, []string{"maxWidth", "filterMin"}, report.Applied)
}

func TestInject_ValidAndUnknownKey(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{
		"debug":   "true",
		"nothing": "1",
	}, newTestRegistry())
	require.NoError(t, err)

	expected := newPackSettings()
	expected.Debug = true
	assert.Equal(t, expected, settings)
	assert.Equal(t, 1, report.Count(UnknownField))
	assert.Len(t, report.Warnings, 1)
}

func TestInject_ConversionFailureLeavesField(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{
		"maxWidth": "wide",
		"scale":    "1, half",
	}, newTestRegistry())
	require.NoError(t, err)

	assert.Equal(t, 1024, settings.MaxWidth)
	assert.Equal(t, []float32{1}, settings.Scale)
	assert.Equal(t, 2, report.Count(ConversionFailure))
	for _, w := range report.Warnings {
		var convErr *ConversionError
		assert.ErrorAs(t, w.Err, &convErr)
	}
	assert.Empty(t, report.Applied)
}

func TestInject_SingleConversionFailure(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{"filterMin": "linear"}, newTestRegistry())
	require.NoError(t, err)

	assert.Equal(t, testFilterNearest, settings.FilterMin)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, ConversionFailure, report.Warnings[0].Kind)
	assert.Equal(t, "linear", report.Warnings[0].Value)
	assert.Equal(t, "enum:inject.testFilter", report.Warnings[0].Type)
}

func TestInject_NoConverter(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{"channels": "r=1"}, newTestRegistry())
	require.NoError(t, err)

	assert.Nil(t, settings.Channels)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, NoConverter, report.Warnings[0].Kind)
	assert.Equal(t, "map[string]int", report.Warnings[0].Type)
}

func TestInject_UnexportedFields(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{
		"quality": "0.5",
		"name":    "ui",
	}, newTestRegistry())
	require.NoError(t, err)

	assert.False(t, report.HasWarnings())
	assert.Equal(t, float32(0.5), settings.quality)
	assert.Equal(t, "ui", settings.name)
}

func TestInject_Lists(t *testing.T) {
	settings := newPackSettings()
	_, err := Inject(settings, map[string]string{
		"scale":       "1, 0.5,0.25",
		"scaleSuffix": ", @half @quarter",
	}, newTestRegistry())
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 0.5, 0.25}, settings.Scale)
	assert.Equal(t, []string{"", "@half", "@quarter"}, settings.Suffixes)
}

func TestInject_SkippedAndGoNameKeys(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{
		"Ignored":  "x",
		"ignored":  "x",
		"MaxWidth": "10",
	}, newTestRegistry())
	require.NoError(t, err)

	assert.Equal(t, "", settings.Ignored)
	assert.Equal(t, 1024, settings.MaxWidth)
	assert.Equal(t, 3, report.Count(UnknownField))
}

func TestInject_OrderIndependence(t *testing.T) {
	overrides := map[string]string{"maxWidth": "512", "debug": "true"}
	registry := newTestRegistry()

	var first *packSettings
	var firstReport *Report
	for i := 0; i < 20; i++ {
		settings := newPackSettings()
		report, err := Inject(settings, overrides, registry)
		require.NoError(t, err)
		if first == nil {
			first, firstReport = settings, report
			continue
		}
		assert.Equal(t, first, settings)
		assert.Equal(t, firstReport, report)
	}
	assert.Equal(t, []string{"debug", "maxWidth"}, firstReport.Applied)
}

func TestInject_Misuse(t *testing.T) {
	registry := newTestRegistry()

	_, err := Inject(nil, nil, registry)
	assert.ErrorIs(t, err, ErrNilTarget)

	_, err = Inject(newPackSettings(), nil, nil)
	assert.ErrorIs(t, err, ErrNilRegistry)

	_, err = Inject(*newPackSettings(), nil, registry)
	assert.ErrorIs(t, err, ErrNotStructPointer)

	var nilSettings *packSettings
	_, err = Inject(nilSettings, nil, registry)
	assert.ErrorIs(t, err, ErrNotStructPointer)

	n := 3
	_, err = Inject(&n, nil, registry)
	assert.ErrorIs(t, err, ErrNotStructPointer)
}

func TestInject_EmptyOverrides(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, nil, newTestRegistry())
	require.NoError(t, err)
	assert.False(t, report.HasWarnings())
	assert.NoError(t, report.Err())
	assert.Equal(t, newPackSettings(), settings)
}

func TestInject_ConcurrentLookups(t *testing.T) {
	registry := newTestRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			settings := newPackSettings()
			_, err := Inject(settings, map[string]string{"maxWidth": "64", "filterMin": "Linear"}, registry)
			assert.NoError(t, err)
			assert.Equal(t, 64, settings.MaxWidth)
		}()
	}
	wg.Wait()
}

func TestFields(t *testing.T) {
	table := Fields(reflect.TypeOf(&packSettings{}))
	assert.Same(t, table, Fields(reflect.TypeOf(packSettings{})))

	var names []string
	for _, f := range table.Fields() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"channels", "debug", "filterMin", "maxWidth", "name", "quality", "scale", "scaleSuffix"}, names)

	field, ok := table.Lookup("scaleSuffix")
	require.True(t, ok)
	assert.Equal(t, "Suffixes", field.GoName)
	assert.Equal(t, "[]string", field.Descriptor())
}

func TestReport_Err(t *testing.T) {
	settings := newPackSettings()
	report, err := Inject(settings, map[string]string{"bogus": "1"}, newTestRegistry())
	require.NoError(t, err)
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "no field matching 'bogus'")
}
