package pack

import (
	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/texturepacker"
)

// NewRegistry returns the default converters plus the packer's enumerations
func NewRegistry() *inject.Registry {
	registry := inject.NewDefaultRegistry()
	inject.RegisterEnum(registry, texturepacker.TextureFilters...)
	inject.RegisterEnum(registry, texturepacker.TextureWraps...)
	inject.RegisterEnum(registry, texturepacker.Formats...)
	inject.RegisterEnum(registry, texturepacker.OutputFormats...)
	inject.RegisterEnum(registry, texturepacker.Resamplings...)
	return registry
}
