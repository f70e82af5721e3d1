package texturepacker

import (
	"fmt"
	"sort"
)

// page is one output image and the regions placed on it
type page struct {
	width, height int
	regions       []*region

	usedW, usedH int
}

// layout places regions on as many pages as needed. Regions are packed in
// shelves, tallest first; grid mode uses uniform cells in name order.
func layout(regions []*region, s *Settings) ([]*page, error) {
	marginX, marginY := 0, 0
	if s.EdgePadding {
		marginX, marginY = s.PaddingX, s.PaddingY
	}

	cellW, cellH := 0, 0
	if s.Grid {
		for _, r := range regions {
			cellW, cellH = max(cellW, r.width()), max(cellH, r.height())
		}
		sort.SliceStable(regions, func(i, j int) bool { return lessByName(regions[i], regions[j]) })
	} else {
		sort.SliceStable(regions, func(i, j int) bool {
			a, b := regions[i], regions[j]
			if a.height() != b.height() {
				return a.height() > b.height()
			}
			if a.width() != b.width() {
				return a.width() > b.width()
			}
			return lessByName(a, b)
		})
	}

	var pages []*page
	var current *page
	x, y, shelfH := 0, 0, 0
	startPage := func() {
		current = &page{}
		pages = append(pages, current)
		x, y, shelfH = marginX, marginY, 0
	}

	for _, r := range regions {
		w, h := r.width(), r.height()
		if s.Grid {
			w, h = cellW, cellH
		}
		if w+2*marginX > s.MaxWidth || h+2*marginY > s.MaxHeight {
			return nil, fmt.Errorf("%w: %s is %dx%d, max page is %dx%d",
				ErrImageTooLarge, r.name, w, h, s.MaxWidth, s.MaxHeight)
		}

		if current == nil {
			startPage()
		}
		if x+w+marginX > s.MaxWidth {
			x, y, shelfH = marginX, y+shelfH+s.PaddingY, 0
		}
		if y+h+marginY > s.MaxHeight {
			startPage()
		}

		r.page, r.x, r.y = len(pages)-1, x, y
		current.regions = append(current.regions, r)
		current.usedW = max(current.usedW, x+w+marginX)
		current.usedH = max(current.usedH, y+h+marginY)

		x += w + s.PaddingX
		shelfH = max(shelfH, h)
	}

	for _, p := range pages {
		p.width, p.height = pageSize(p.usedW, p.usedH, s)
	}
	return pages, nil
}

// pageSize grows the used area to the configured size constraints
func pageSize(w, h int, s *Settings) (int, int) {
	w, h = max(w, s.MinWidth), max(h, s.MinHeight)
	if s.Pot {
		w, h = nextPowerOfTwo(w), nextPowerOfTwo(h)
	}
	if s.MultipleOfFour {
		w, h = (w+3)&^3, (h+3)&^3
	}
	if s.Square {
		side := max(w, h)
		w, h = side, side
	}
	return min(w, s.MaxWidth), min(h, s.MaxHeight)
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func lessByName(a, b *region) bool {
	if a.name != b.name {
		return a.name < b.name
	}
	return a.index < b.index
}
