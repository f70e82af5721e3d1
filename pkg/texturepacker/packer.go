package texturepacker

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/image/colornames"
	"golang.org/x/image/draw"

	"github.com/poltergeist/atlaspack/pkg/logger"
)

// Packer packs image folders into atlases
type Packer struct {
	log logger.Logger
}

// NewPacker creates a packer that reports progress to log
func NewPacker(log logger.Logger) *Packer {
	if log == nil {
		log = logger.CreateLoggerWithOutput("", "error", io.Discard)
	}
	return &Packer{log: log}
}

// Process packs every image under input into pages and an atlas file in
// output. One pack is written per scale, named packName plus the scale's
// suffix.
func (p *Packer) Process(ctx context.Context, settings *Settings, input, output, packName string) error {
	if settings == nil {
		settings = NewSettings()
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	sources, err := collectSources(ctx, input, settings)
	if err != nil {
		return fmt.Errorf("failed to read images from %s: %w", input, err)
	}
	if len(sources) == 0 {
		p.log.Warn("No images found", logger.WithField("input", input))
		return nil
	}

	if err := os.MkdirAll(output, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i, scale := range settings.Scale {
		name := packName + settings.suffix(i)
		if err := p.packScale(ctx, settings, sources, scale, output, name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packer) packScale(ctx context.Context, s *Settings, sources []*source, scale float32, output, name string) error {
	regions := make([]*region, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := prepare(src, scale, s)
		if r == nil {
			p.log.Debug("Ignoring blank image", logger.WithField("image", src.name))
			continue
		}
		regions = append(regions, r)
	}
	if s.Alias {
		regions = dedupe(regions)
	}

	pages, err := layout(regions, s)
	if err != nil {
		return err
	}

	files := make([]string, len(pages))
	for i, pg := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		files[i] = PageFileName(name, i, s.OutputFormat)
		if err := writePage(filepath.Join(output, files[i]), render(pg, s), s); err != nil {
			return err
		}
	}

	atlasPath := filepath.Join(output, name+s.AtlasExtension)
	if err := writeAtlasFile(atlasPath, describe(pages, files, s)); err != nil {
		return err
	}

	p.log.Info(fmt.Sprintf("Packed %d images into %d pages", len(regions), len(pages)),
		logger.WithField("atlas", atlasPath),
		logger.WithField("scale", scale))
	return nil
}

// PageFileName returns the file name of page i of a pack: name.png,
// name2.png, name3.png and so on
func PageFileName(name string, i int, format OutputFormat) string {
	if i == 0 {
		return name + "." + string(format)
	}
	return name + strconv.Itoa(i+1) + "." + string(format)
}

// render draws the regions of a page
func render(pg *page, s *Settings) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, pg.width, pg.height))
	for _, r := range pg.regions {
		rect := image.Rect(r.x, r.y, r.x+r.width(), r.y+r.height())
		draw.Draw(dst, rect, r.img, r.img.Bounds().Min, draw.Src)
		if s.DuplicatePadding {
			duplicateEdges(dst, rect, s.PaddingX/2, s.PaddingY/2)
		}
		if s.Debug {
			outline(dst, rect, colornames.Magenta)
		}
	}
	if s.Debug {
		outline(dst, dst.Bounds(), colornames.Red)
	}
	if s.PremultiplyAlpha {
		premultiply(dst)
	}
	return dst
}

// duplicateEdges copies the outermost pixels of rect into the surrounding
// padding
func duplicateEdges(img *image.NRGBA, rect image.Rectangle, amountX, amountY int) {
	bounds := img.Bounds()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		left, right := img.NRGBAAt(rect.Min.X, y), img.NRGBAAt(rect.Max.X-1, y)
		for d := 1; d <= amountX; d++ {
			if x := rect.Min.X - d; x >= bounds.Min.X {
				img.SetNRGBA(x, y, left)
			}
			if x := rect.Max.X - 1 + d; x < bounds.Max.X {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	minX, maxX := max(rect.Min.X-amountX, bounds.Min.X), min(rect.Max.X+amountX, bounds.Max.X)
	for x := minX; x < maxX; x++ {
		top, bottom := img.NRGBAAt(x, rect.Min.Y), img.NRGBAAt(x, rect.Max.Y-1)
		for d := 1; d <= amountY; d++ {
			if y := rect.Min.Y - d; y >= bounds.Min.Y {
				img.SetNRGBA(x, y, top)
			}
			if y := rect.Max.Y - 1 + d; y < bounds.Max.Y {
				img.SetNRGBA(x, y, bottom)
			}
		}
	}
}

func outline(img *image.NRGBA, rect image.Rectangle, c color.RGBA) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.Set(x, rect.Min.Y, c)
		img.Set(x, rect.Max.Y-1, c)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.Set(rect.Min.X, y, c)
		img.Set(rect.Max.X-1, y, c)
	}
}

// premultiply stores color channels multiplied by alpha
func premultiply(img *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		a := uint32(img.Pix[i+3])
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = uint8((uint32(img.Pix[i+c])*a + 127) / 255)
		}
	}
}

// createFile opens output files; a failed Close means the file is incomplete
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

func writeAtlasFile(path string, pages []AtlasPage) error {
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("failed to create atlas: %w", err)
	}
	if err := WriteAtlas(f, pages); err != nil {
		f.Close()
		return fmt.Errorf("failed to write atlas: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close atlas: %w", err)
	}
	return nil
}

func writePage(path string, img image.Image, s *Settings) error {
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	switch s.OutputFormat {
	case OutputJPG:
		quality := int(math.Round(float64(s.JpegQuality) * 100))
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: max(1, quality)})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
