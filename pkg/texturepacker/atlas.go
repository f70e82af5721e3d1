package texturepacker

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// AtlasPage is one page entry of an atlas file
type AtlasPage struct {
	File      string
	Width     int
	Height    int
	Format    Format
	FilterMin TextureFilter
	FilterMag TextureFilter
	Repeat    string
	Regions   []AtlasRegion
}

// AtlasRegion is one named region of a page
type AtlasRegion struct {
	Name       string
	Rotate     bool
	X, Y       int
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
	OffsetX    int
	OffsetY    int
	Index      int
}

// repeatMode returns the atlas repeat value for the wrap settings
func repeatMode(s *Settings) string {
	x, y := s.WrapX != WrapClampToEdge, s.WrapY != WrapClampToEdge
	switch {
	case x && y:
		return "xy"
	case x:
		return "x"
	case y:
		return "y"
	default:
		return "none"
	}
}

// describe converts laid out pages into atlas entries. Regions are listed
// by name then index; aliases share their original's placement.
func describe(pages []*page, files []string, s *Settings) []AtlasPage {
	out := make([]AtlasPage, 0, len(pages))
	for i, p := range pages {
		entry := AtlasPage{
			File:      files[i],
			Width:     p.width,
			Height:    p.height,
			Format:    s.Format,
			FilterMin: s.FilterMin,
			FilterMag: s.FilterMag,
			Repeat:    repeatMode(s),
		}
		for _, r := range p.regions {
			entry.Regions = append(entry.Regions, atlasRegion(r, r))
			for _, alias := range r.aliases {
				entry.Regions = append(entry.Regions, atlasRegion(alias, r))
			}
		}
		sort.SliceStable(entry.Regions, func(a, b int) bool {
			ra, rb := entry.Regions[a], entry.Regions[b]
			if ra.Name != rb.Name {
				return ra.Name < rb.Name
			}
			return ra.Index < rb.Index
		})
		out = append(out, entry)
	}
	return out
}

func atlasRegion(r, placed *region) AtlasRegion {
	return AtlasRegion{
		Name:       r.name,
		X:          placed.x,
		Y:          placed.y,
		Width:      r.width(),
		Height:     r.height(),
		OrigWidth:  r.origW,
		OrigHeight: r.origH,
		OffsetX:    r.offsetX,
		OffsetY:    r.offsetY,
		Index:      r.index,
	}
}

// WriteAtlas writes pages in the libGDX text atlas format
func WriteAtlas(w io.Writer, pages []AtlasPage) error {
	bw := bufio.NewWriter(w)
	for _, p := range pages {
		fmt.Fprintf(bw, "\n%s\n", p.File)
		fmt.Fprintf(bw, "size: %d,%d\n", p.Width, p.Height)
		fmt.Fprintf(bw, "format: %s\n", p.Format)
		fmt.Fprintf(bw, "filter: %s,%s\n", p.FilterMin, p.FilterMag)
		fmt.Fprintf(bw, "repeat: %s\n", p.Repeat)
		for _, r := range p.Regions {
			fmt.Fprintf(bw, "%s\n", r.Name)
			fmt.Fprintf(bw, "  rotate: %t\n", r.Rotate)
			fmt.Fprintf(bw, "  xy: %d, %d\n", r.X, r.Y)
			fmt.Fprintf(bw, "  size: %d, %d\n", r.Width, r.Height)
			fmt.Fprintf(bw, "  orig: %d, %d\n", r.OrigWidth, r.OrigHeight)
			fmt.Fprintf(bw, "  offset: %d, %d\n", r.OffsetX, r.OffsetY)
			fmt.Fprintf(bw, "  index: %d\n", r.Index)
		}
	}
	return bw.Flush()
}

// ReadAtlas parses an atlas written by WriteAtlas
func ReadAtlas(r io.Reader) ([]AtlasPage, error) {
	var pages []AtlasPage
	var page *AtlasPage
	var region *AtlasRegion

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			page, region = nil, nil
			continue
		}

		key, value, isPair := strings.Cut(strings.TrimSpace(line), ":")
		value = strings.TrimSpace(value)
		indented := strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")

		switch {
		case page == nil:
			pages = append(pages, AtlasPage{File: line})
			page = &pages[len(pages)-1]
		case indented && region != nil:
			if err := setRegionValue(region, key, value); err != nil {
				return nil, fmt.Errorf("atlas line %d: %w", lineNo, err)
			}
		case isPair && region == nil && pageKeys[key]:
			if err := setPageValue(page, key, value); err != nil {
				return nil, fmt.Errorf("atlas line %d: %w", lineNo, err)
			}
		default:
			// unindented lines after the page header name regions, even with a ':'
			page.Regions = append(page.Regions, AtlasRegion{Name: line, Index: -1})
			region = &page.Regions[len(page.Regions)-1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

var pageKeys = map[string]bool{"size": true, "format": true, "filter": true, "repeat": true}

func setPageValue(p *AtlasPage, key, value string) error {
	switch key {
	case "size":
		return parsePair(value, &p.Width, &p.Height)
	case "format":
		p.Format = Format(value)
	case "filter":
		minFilter, magFilter, _ := strings.Cut(value, ",")
		p.FilterMin = TextureFilter(strings.TrimSpace(minFilter))
		p.FilterMag = TextureFilter(strings.TrimSpace(magFilter))
	case "repeat":
		p.Repeat = value
	}
	return nil
}

func setRegionValue(r *AtlasRegion, key, value string) error {
	switch key {
	case "rotate":
		r.Rotate = value == "true"
	case "xy":
		return parsePair(value, &r.X, &r.Y)
	case "size":
		return parsePair(value, &r.Width, &r.Height)
	case "orig":
		return parsePair(value, &r.OrigWidth, &r.OrigHeight)
	case "offset":
		return parsePair(value, &r.OffsetX, &r.OffsetY)
	case "index":
		index, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		r.Index = index
	}
	return nil
}

func parsePair(value string, a, b *int) error {
	first, second, ok := strings.Cut(value, ",")
	if !ok {
		return fmt.Errorf("expected two values, got %q", value)
	}
	var err error
	if *a, err = strconv.Atoi(strings.TrimSpace(first)); err != nil {
		return err
	}
	if *b, err = strconv.Atoi(strings.TrimSpace(second)); err != nil {
		return err
	}
	return nil
}
