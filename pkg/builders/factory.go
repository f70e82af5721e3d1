package builders

import (
	"github.com/poltergeist/atlaspack/pkg/inject"
	"github.com/poltergeist/atlaspack/pkg/interfaces"
	"github.com/poltergeist/atlaspack/pkg/logger"
	"github.com/poltergeist/atlaspack/pkg/pack"
	"github.com/poltergeist/atlaspack/pkg/types"
)

// BuilderFactory creates pack builders sharing one packer and registry
type BuilderFactory struct {
	packer   pack.Packer
	registry *inject.Registry
}

// NewBuilderFactory creates a builder factory. A nil packer gives every
// builder its own default texture packer.
func NewBuilderFactory(packer pack.Packer, registry *inject.Registry) *BuilderFactory {
	if registry == nil {
		registry = pack.NewRegistry()
	}
	return &BuilderFactory{
		packer:   packer,
		registry: registry,
	}
}

// CreateBuilder creates the builder for a target
func (f *BuilderFactory) CreateBuilder(
	target *types.PackTarget,
	projectRoot string,
	log logger.Logger,
	stateManager interfaces.StateManager,
) interfaces.Builder {
	return NewPackBuilder(target, projectRoot, log, stateManager, f.packer, f.registry)
}
