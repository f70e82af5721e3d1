package texturepacker

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegion(name string, w, h int) *region {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	return &region{name: name, index: -1, img: img, origW: w, origH: h}
}

func TestPageSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		mutate       func(s *Settings)
		wantW, wantH int
	}{
		{"grows to minimum", 3, 5, func(s *Settings) {}, 16, 16},
		{"power of two", 33, 17, func(s *Settings) {}, 64, 32},
		{"no pot", 33, 17, func(s *Settings) { s.Pot = false }, 33, 17},
		{"multiple of four", 33, 17, func(s *Settings) { s.Pot = false; s.MultipleOfFour = true }, 36, 20},
		{"square", 33, 17, func(s *Settings) { s.Square = true }, 64, 64},
		{"clamped to max", 600, 20, func(s *Settings) { s.MaxWidth = 700 }, 700, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSettings()
			tt.mutate(s)
			w, h := pageSize(tt.w, tt.h, s)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestLayout_Shelves(t *testing.T) {
	s := NewSettings()
	s.MaxWidth, s.MaxHeight = 64, 64
	regions := []*region{
		testRegion("small", 10, 10),
		testRegion("tall", 20, 30),
		testRegion("wide", 40, 12),
	}

	pages, err := layout(regions, s)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	byName := map[string]*region{}
	for _, r := range pages[0].regions {
		byName[r.name] = r
	}
	assert.Equal(t, image.Pt(2, 2), image.Pt(byName["tall"].x, byName["tall"].y))
	// wide does not fit beside tall and opens a new shelf below it
	assert.Equal(t, image.Pt(2, 34), image.Pt(byName["wide"].x, byName["wide"].y))
	assert.Equal(t, image.Pt(44, 34), image.Pt(byName["small"].x, byName["small"].y))
}

func TestLayout_NoEdgePadding(t *testing.T) {
	s := NewSettings()
	s.EdgePadding = false
	pages, err := layout([]*region{testRegion("a", 8, 8)}, s)
	require.NoError(t, err)
	assert.Equal(t, 0, pages[0].regions[0].x)
	assert.Equal(t, 0, pages[0].regions[0].y)
}

func TestLayout_Grid(t *testing.T) {
	s := NewSettings()
	s.Grid = true
	s.PaddingX, s.PaddingY = 0, 0
	s.EdgePadding = false
	regions := []*region{
		testRegion("c", 4, 4),
		testRegion("a", 8, 2),
		testRegion("b", 2, 6),
	}

	pages, err := layout(regions, s)
	require.NoError(t, err)
	xs := []int{}
	for _, r := range pages[0].regions {
		xs = append(xs, r.x)
	}
	assert.Equal(t, []string{"a", "b", "c"}, []string{pages[0].regions[0].name, pages[0].regions[1].name, pages[0].regions[2].name})
	assert.Equal(t, []int{0, 8, 16}, xs)
}

func TestDedupe(t *testing.T) {
	a, b, c := testRegion("a", 4, 4), testRegion("b", 4, 4), testRegion("c", 4, 4)
	c.img.SetNRGBA(1, 1, color.NRGBA{R: 1, A: 255})

	out := dedupe([]*region{a, b, c})
	require.Len(t, out, 2)
	assert.Same(t, a, out[0])
	assert.Equal(t, []*region{b}, a.aliases)
}

func TestPremultiply(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	premultiply(img)
	assert.Equal(t, color.NRGBA{R: 100, G: 50, B: 25, A: 128}, img.NRGBAAt(0, 0))
}

func TestDuplicateEdges(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	edge := color.NRGBA{G: 255, A: 255}
	img.SetNRGBA(2, 2, edge)
	img.SetNRGBA(3, 3, edge)

	duplicateEdges(img, image.Rect(2, 2, 4, 4), 1, 1)
	assert.Equal(t, edge, img.NRGBAAt(1, 2))
	assert.Equal(t, edge, img.NRGBAAt(1, 1))
	assert.Equal(t, edge, img.NRGBAAt(4, 4))
	assert.Zero(t, img.NRGBAAt(0, 0).A)
}

func TestRepeatMode(t *testing.T) {
	s := NewSettings()
	assert.Equal(t, "none", repeatMode(s))
	s.WrapX = WrapRepeat
	assert.Equal(t, "x", repeatMode(s))
	s.WrapY = WrapMirroredRepeat
	assert.Equal(t, "xy", repeatMode(s))
	s.WrapX = WrapClampToEdge
	assert.Equal(t, "y", repeatMode(s))
}
