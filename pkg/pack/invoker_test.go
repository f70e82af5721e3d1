package pack_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/mocks"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
)

func newInvoker(t *testing.T) (*pack.Invoker, *mocks.MockPacker, *bytes.Buffer) {
	t.Helper()
	ctrl := gomock.NewController(t)
	packer := mocks.NewMockPacker(ctrl)
	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("", "debug", &buf)
	return pack.NewInvoker(packer, nil, log), packer, &buf
}

func TestInvoke_EndToEndScenario(t *testing.T) {
	invoker, packer, logs := newInvoker(t)
	source, output := t.TempDir(), t.TempDir()

	var got *texturepacker.Settings
	packer.EXPECT().
		Process(gomock.Any(), gomock.Any(), source, output, "pack").
		DoAndReturn(func(_ context.Context, s *texturepacker.Settings, _, _, _ string) error {
			got = s
			return nil
		})

	result, err := invoker.Invoke(context.Background(), pack.Request{
		SourceDir: source,
		OutputDir: output,
		PackName:  "pack",
		Overrides: map[string]string{
			"maxWidth":  "2048",
			"filterMin": "Linear",
			"bogusKey":  "x",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.False(t, result.Skipped)
	assert.Same(t, got, result.Settings)
	assert.Equal(t, 2048, got.MaxWidth)
	assert.Equal(t, texturepacker.FilterLinear, got.FilterMin)
	assert.Equal(t, 1024, got.MaxHeight)

	require.Len(t, result.Report.Warnings, 1)
	assert.Equal(t, inject.UnknownField, result.Report.Warnings[0].Kind)
	assert.Equal(t, "bogusKey", result.Report.Warnings[0].Field)
	assert.Contains(t, logs.String(), "no field matching 'bogusKey'")
}

func TestInvoke_MissingSource(t *testing.T) {
	invoker, _, logs := newInvoker(t)
	missing := filepath.Join(t.TempDir(), "sprites")

	result, err := invoker.Invoke(context.Background(), pack.Request{
		SourceDir: missing,
		Overrides: map[string]string{"bogusKey": "x"},
	})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Nil(t, result.Report)
	assert.Contains(t, logs.String(), "Folder not found: "+missing+" ... no atlases to build.")
}

func TestInvoke_SourceIsFile(t *testing.T) {
	invoker, _, _ := newInvoker(t)
	file := filepath.Join(t.TempDir(), "sprite.png")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	result, err := invoker.Invoke(context.Background(), pack.Request{SourceDir: file})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestInvoke_Defaults(t *testing.T) {
	invoker, _, _ := newInvoker(t)

	result, err := invoker.Invoke(context.Background(), pack.Request{})
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Equal(t, pack.Request{
		SourceDir: pack.DefaultAssetFolder,
		OutputDir: pack.DefaultOutputDirectory,
		PackName:  pack.DefaultPackName,
	}, result.Request)
}

func TestInvoke_PackerFailure(t *testing.T) {
	invoker, packer, logs := newInvoker(t)
	source := t.TempDir()
	cause := errors.New("disk full")

	packer.EXPECT().
		Process(gomock.Any(), gomock.Any(), source, gomock.Any(), "ui").
		Return(cause)

	result, err := invoker.Invoke(context.Background(), pack.Request{SourceDir: source, PackName: "ui"})
	require.Error(t, err)
	assert.NotNil(t, result)
	assert.ErrorIs(t, err, cause)
	assert.True(t, pack.IsExecutionError(err))

	var execErr *pack.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "ui", execErr.PackName)
	assert.Contains(t, logs.String(), "Packer failed")
}

func TestInvoke_BadValuesStillPack(t *testing.T) {
	invoker, packer, _ := newInvoker(t)
	source := t.TempDir()

	var got *texturepacker.Settings
	packer.EXPECT().
		Process(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *texturepacker.Settings, _, _, _ string) error {
			got = s
			return nil
		})

	result, err := invoker.Invoke(context.Background(), pack.Request{
		SourceDir: source,
		Overrides: map[string]string{
			"maxWidth":  "wide",
			"filterMin": "linear",
			"scale":     "1, 0.5",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1024, got.MaxWidth)
	assert.Equal(t, texturepacker.FilterNearest, got.FilterMin)
	assert.Equal(t, []float32{1, 0.5}, got.Scale)
	assert.Equal(t, 2, result.Report.Count(inject.ConversionFailure))
}

func TestInvoke_ContextPassedThrough(t *testing.T) {
	invoker, packer, _ := newInvoker(t)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run")

	packer.EXPECT().
		Process(ctx, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	_, err := invoker.Invoke(ctx, pack.Request{SourceDir: t.TempDir()})
	require.NoError(t, err)
}

func TestInvoke_WithTexturePacker(t *testing.T) {
	source, output := t.TempDir(), filepath.Join(t.TempDir(), "resources")
	f, err := os.Create(filepath.Join(source, "tile.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8))))
	require.NoError(t, f.Close())

	log := logger.CreateLoggerWithOutput("", "error", &bytes.Buffer{})
	invoker := pack.NewInvoker(texturepacker.NewPacker(log), pack.NewRegistry(), log)

	_, err = invoker.Invoke(context.Background(), pack.Request{
		SourceDir: source,
		OutputDir: output,
		PackName:  "tiles",
		Overrides: map[string]string{"outputFormat": "jpg", "maxWidth": "64"},
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(output, "tiles.atlas"))
	assert.FileExists(t, filepath.Join(output, "tiles.jpg"))
}

func TestNewRegistry_CoversSettings(t *testing.T) {
	registry := pack.NewRegistry()
	for _, field := range inject.Fields(reflect.TypeOf(texturepacker.Settings{})).Fields() {
		_, ok := registry.Lookup(field.Type)
		assert.True(t, ok, "no converter for %s (%s)", field.Name, field.Descriptor())
	}
}

func TestNewRegistry_Enums(t *testing.T) {
	registry := pack.NewRegistry()
	tests := []struct {
		value    interface{}
		raw      string
		expected interface{}
	}{
		{texturepacker.TextureFilter(""), "MipMapLinearLinear", texturepacker.FilterMipMapLinearLinear},
		{texturepacker.TextureWrap(""), "Repeat", texturepacker.WrapRepeat},
		{texturepacker.Format(""), "RGB565", texturepacker.FormatRGB565},
		{texturepacker.OutputFormat(""), "jpg", texturepacker.OutputJPG},
		{texturepacker.Resampling(""), "bilinear", texturepacker.ResamplingBilinear},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			converter, ok := registry.Lookup(reflect.TypeOf(tt.value))
			require.True(t, ok)
			v, err := converter.Convert(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, v)
		})
	}
}
