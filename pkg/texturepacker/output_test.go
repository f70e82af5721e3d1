package texturepacker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("disk full")

type failingCloser struct {
	bytes.Buffer
	fail bool
}

func (f *failingCloser) Close() error {
	if f.fail {
		return errDiskFull
	}
	return nil
}

func stubCreateFile(t *testing.T, failOn string) {
	t.Helper()
	orig := createFile
	t.Cleanup(func() { createFile = orig })
	createFile = func(path string) (io.WriteCloser, error) {
		return &failingCloser{fail: strings.HasSuffix(path, failOn)}, nil
	}
}

func writeSprite(t *testing.T, dir string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "sprite.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 4, 4))))
}

func TestProcess_CloseErrors(t *testing.T) {
	for _, failOn := range []string{".atlas", ".png"} {
		t.Run(failOn, func(t *testing.T) {
			input := t.TempDir()
			writeSprite(t, input)
			stubCreateFile(t, failOn)

			err := NewPacker(nil).Process(context.Background(), NewSettings(), input, t.TempDir(), "pack")
			require.Error(t, err)
			assert.ErrorIs(t, err, errDiskFull)
			assert.Contains(t, err.Error(), "failed to close")
		})
	}
}
