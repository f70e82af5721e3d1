package texturepacker

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// ImageExtensions lists the extensions read as sprites, lower case and
// with the leading dot
func ImageExtensions() []string {
	out := make([]string, 0, len(imageExtensions))
	for ext := range imageExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

var indexSuffix = regexp.MustCompile(`^(.+)_(\d+)$`)

// source is one decoded input image
type source struct {
	name  string
	index int
	path  string
	img   image.Image
}

// region is a source prepared for one scale: scaled, trimmed and placed
type region struct {
	name  string
	index int

	img              *image.NRGBA
	origW, origH     int
	offsetX, offsetY int

	page    int
	x, y    int
	aliases []*region
}

func (r *region) width() int  { return r.img.Bounds().Dx() }
func (r *region) height() int { return r.img.Bounds().Dy() }

// collectSources walks root and decodes every supported image in lexical
// path order
func collectSources(ctx context.Context, root string, s *Settings) ([]*source, error) {
	var sources []*source
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !imageExtensions[ext] || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		img, err := decodeFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
		if s.FlattenPaths {
			name = filepath.Base(name)
		}
		src := &source{name: name, index: -1, path: path, img: img}
		if s.UseIndexes {
			if m := indexSuffix.FindStringSubmatch(name); m != nil {
				if index, err := strconv.Atoi(m[2]); err == nil {
					src.name, src.index = m[1], index
				}
			}
		}
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func interpolator(r Resampling) draw.Interpolator {
	switch r {
	case ResamplingNearest:
		return draw.NearestNeighbor
	case ResamplingBilinear:
		return draw.ApproxBiLinear
	default:
		return draw.CatmullRom
	}
}

// toNRGBA copies src into a zero-origin NRGBA image resized by scale
func toNRGBA(src image.Image, scale float32, kernel draw.Interpolator) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if scale != 1 {
		w = max(1, int(math.Round(float64(w)*float64(scale))))
		h = max(1, int(math.Round(float64(h)*float64(scale))))
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		kernel.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst
}

// prepare builds the region for src at scale. A nil region means the image
// is blank and ignored.
func prepare(src *source, scale float32, s *Settings) *region {
	img := toNRGBA(src.img, scale, interpolator(s.ScaleResampling))
	r := &region{
		name:  src.name,
		index: src.index,
		img:   img,
		origW: img.Bounds().Dx(),
		origH: img.Bounds().Dy(),
	}
	if !s.StripWhitespaceX && !s.StripWhitespaceY {
		return r
	}

	trim, blank := opaqueBounds(img, uint8(s.AlphaThreshold))
	if blank {
		if s.IgnoreBlankImages {
			return nil
		}
		r.img = image.NewNRGBA(image.Rect(0, 0, 1, 1))
		return r
	}
	if !s.StripWhitespaceX {
		trim.Min.X, trim.Max.X = 0, r.origW
	}
	if !s.StripWhitespaceY {
		trim.Min.Y, trim.Max.Y = 0, r.origH
	}
	r.img = img.SubImage(trim).(*image.NRGBA)
	r.offsetX = trim.Min.X
	// atlas offsets are measured from the bottom edge
	r.offsetY = r.origH - trim.Max.Y
	return r
}

// opaqueBounds returns the smallest rectangle holding every pixel whose
// alpha exceeds threshold
func opaqueBounds(img *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	b := img.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X, b.Min.Y
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.NRGBAAt(x, y).A <= threshold {
				continue
			}
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x+1), max(maxY, y+1)
		}
	}
	if minX >= maxX || minY >= maxY {
		return image.Rectangle{}, true
	}
	return image.Rect(minX, minY, maxX, maxY), false
}

// dedupe folds regions with identical pixels into the first one seen,
// which then carries the rest as aliases
func dedupe(regions []*region) []*region {
	seen := make(map[uint64][]*region)
	out := regions[:0]
	for _, r := range regions {
		key := pixelHash(r)
		var original *region
		for _, candidate := range seen[key] {
			if samePixels(candidate, r) {
				original = candidate
				break
			}
		}
		if original != nil {
			original.aliases = append(original.aliases, r)
			continue
		}
		seen[key] = append(seen[key], r)
		out = append(out, r)
	}
	return out
}

func pixelHash(r *region) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%dx%d+%d+%d/%dx%d", r.width(), r.height(), r.offsetX, r.offsetY, r.origW, r.origH)
	for y := 0; y < r.height(); y++ {
		h.Write(row(r.img, y))
	}
	return h.Sum64()
}

func samePixels(a, b *region) bool {
	if a.width() != b.width() || a.height() != b.height() ||
		a.origW != b.origW || a.origH != b.origH ||
		a.offsetX != b.offsetX || a.offsetY != b.offsetY {
		return false
	}
	for y := 0; y < a.height(); y++ {
		if !bytes.Equal(row(a.img, y), row(b.img, y)) {
			return false
		}
	}
	return true
}

// row returns the pixel bytes of line y relative to img's bounds
func row(img *image.NRGBA, y int) []byte {
	b := img.Bounds()
	start := img.PixOffset(b.Min.X, b.Min.Y+y)
	return img.Pix[start : start+b.Dx()*4]
}
