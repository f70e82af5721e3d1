// Package texturepacker packs a directory of images into texture atlas
// pages and writes a libGDX style .atlas description next to them.
package texturepacker

// TextureFilter is the GPU sampling filter written to the atlas
type TextureFilter string

const (
	FilterNearest              TextureFilter = "Nearest"
	FilterLinear               TextureFilter = "Linear"
	FilterMipMap               TextureFilter = "MipMap"
	FilterMipMapNearestNearest TextureFilter = "MipMapNearestNearest"
	FilterMipMapLinearNearest  TextureFilter = "MipMapLinearNearest"
	FilterMipMapNearestLinear  TextureFilter = "MipMapNearestLinear"
	FilterMipMapLinearLinear   TextureFilter = "MipMapLinearLinear"
)

// TextureFilters lists every valid filter name
var TextureFilters = []TextureFilter{
	FilterNearest, FilterLinear, FilterMipMap,
	FilterMipMapNearestNearest, FilterMipMapLinearNearest,
	FilterMipMapNearestLinear, FilterMipMapLinearLinear,
}

// TextureWrap is the texture wrap mode written to the atlas
type TextureWrap string

const (
	WrapMirroredRepeat TextureWrap = "MirroredRepeat"
	WrapClampToEdge    TextureWrap = "ClampToEdge"
	WrapRepeat         TextureWrap = "Repeat"
)

// TextureWraps lists every valid wrap name
var TextureWraps = []TextureWrap{WrapMirroredRepeat, WrapClampToEdge, WrapRepeat}

// Format is the pixel format the runtime should load a page with
type Format string

const (
	FormatAlpha          Format = "Alpha"
	FormatIntensity      Format = "Intensity"
	FormatLuminanceAlpha Format = "LuminanceAlpha"
	FormatRGB565         Format = "RGB565"
	FormatRGBA4444       Format = "RGBA4444"
	FormatRGB888         Format = "RGB888"
	FormatRGBA8888       Format = "RGBA8888"
)

// Formats lists every valid pixel format name
var Formats = []Format{
	FormatAlpha, FormatIntensity, FormatLuminanceAlpha,
	FormatRGB565, FormatRGBA4444, FormatRGB888, FormatRGBA8888,
}

// OutputFormat is the image encoding used for pages
type OutputFormat string

const (
	OutputPNG OutputFormat = "png"
	OutputJPG OutputFormat = "jpg"
)

// OutputFormats lists every valid page encoding
var OutputFormats = []OutputFormat{OutputPNG, OutputJPG}

// Resampling selects the kernel used when packing at a scale other than 1
type Resampling string

const (
	ResamplingNearest  Resampling = "nearest"
	ResamplingBilinear Resampling = "bilinear"
	ResamplingBicubic  Resampling = "bicubic"
)

// Resamplings lists every valid resampling name
var Resamplings = []Resampling{ResamplingNearest, ResamplingBilinear, ResamplingBicubic}

// Settings controls a pack run. The json names are the keys users set in
// configuration.
type Settings struct {
	Pot               bool          `json:"pot"`
	MultipleOfFour    bool          `json:"multipleOfFour"`
	PaddingX          int           `json:"paddingX"`
	PaddingY          int           `json:"paddingY"`
	EdgePadding       bool          `json:"edgePadding"`
	DuplicatePadding  bool          `json:"duplicatePadding"`
	MinWidth          int           `json:"minWidth"`
	MinHeight         int           `json:"minHeight"`
	MaxWidth          int           `json:"maxWidth"`
	MaxHeight         int           `json:"maxHeight"`
	Square            bool          `json:"square"`
	StripWhitespaceX  bool          `json:"stripWhitespaceX"`
	StripWhitespaceY  bool          `json:"stripWhitespaceY"`
	AlphaThreshold    int           `json:"alphaThreshold"`
	FilterMin         TextureFilter `json:"filterMin"`
	FilterMag         TextureFilter `json:"filterMag"`
	WrapX             TextureWrap   `json:"wrapX"`
	WrapY             TextureWrap   `json:"wrapY"`
	Format            Format        `json:"format"`
	Alias             bool          `json:"alias"`
	OutputFormat      OutputFormat  `json:"outputFormat"`
	JpegQuality       float32       `json:"jpegQuality"`
	IgnoreBlankImages bool          `json:"ignoreBlankImages"`
	Debug             bool          `json:"debug"`
	FlattenPaths      bool          `json:"flattenPaths"`
	PremultiplyAlpha  bool          `json:"premultiplyAlpha"`
	UseIndexes        bool          `json:"useIndexes"`
	Grid              bool          `json:"grid"`
	Scale             []float32     `json:"scale"`
	ScaleSuffix       []string      `json:"scaleSuffix"`
	ScaleResampling   Resampling    `json:"scaleResampling"`
	AtlasExtension    string        `json:"atlasExtension"`
}

// NewSettings returns settings with the packer defaults
func NewSettings() *Settings {
	return &Settings{
		Pot:               true,
		PaddingX:          2,
		PaddingY:          2,
		EdgePadding:       true,
		MinWidth:          16,
		MinHeight:         16,
		MaxWidth:          1024,
		MaxHeight:         1024,
		FilterMin:         FilterNearest,
		FilterMag:         FilterNearest,
		WrapX:             WrapClampToEdge,
		WrapY:             WrapClampToEdge,
		Format:            FormatRGBA8888,
		Alias:             true,
		OutputFormat:      OutputPNG,
		JpegQuality:       0.9,
		IgnoreBlankImages: true,
		UseIndexes:        true,
		Scale:             []float32{1},
		ScaleSuffix:       []string{""},
		ScaleResampling:   ResamplingBicubic,
		AtlasExtension:    ".atlas",
	}
}

// Validate checks settings that cannot produce a usable pack
func (s *Settings) Validate() error {
	switch {
	case s.MaxWidth <= 0 || s.MaxHeight <= 0:
		return errorf("maxWidth and maxHeight must be positive, got %dx%d", s.MaxWidth, s.MaxHeight)
	case s.MinWidth > s.MaxWidth || s.MinHeight > s.MaxHeight:
		return errorf("min page size %dx%d exceeds max %dx%d", s.MinWidth, s.MinHeight, s.MaxWidth, s.MaxHeight)
	case s.PaddingX < 0 || s.PaddingY < 0:
		return errorf("padding must not be negative")
	case s.AlphaThreshold < 0 || s.AlphaThreshold > 255:
		return errorf("alphaThreshold must be within 0-255, got %d", s.AlphaThreshold)
	case len(s.Scale) == 0:
		return errorf("at least one scale is required")
	case s.JpegQuality < 0 || s.JpegQuality > 1:
		return errorf("jpegQuality must be within 0-1, got %v", s.JpegQuality)
	case s.OutputFormat != OutputPNG && s.OutputFormat != OutputJPG:
		return errorf("unsupported output format %q", s.OutputFormat)
	}
	for i, scale := range s.Scale {
		if scale <= 0 {
			return errorf("scale %d must be positive, got %v", i, scale)
		}
	}
	return nil
}

// suffix returns the pack name suffix for scale index i
func (s *Settings) suffix(i int) string {
	if i < len(s.ScaleSuffix) {
		return s.ScaleSuffix[i]
	}
	return ""
}

// AtlasFileNames returns the atlas file written for each scale of a pack
func (s *Settings) AtlasFileNames(packName string) []string {
	names := make([]string, len(s.Scale))
	for i := range s.Scale {
		names[i] = packName + s.suffix(i) + s.AtlasExtension
	}
	return names
}
