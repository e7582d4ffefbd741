package app

import (
	"github.com/vk/matrixflow/internal/registry"
	"github.com/vk/matrixflow/modules/checkout"
	"github.com/vk/matrixflow/modules/coverage_upload"
	"github.com/vk/matrixflow/modules/setup_runtime"
)

// coreModules is the definitive list of all action modules that are compiled
// into the matrixflow binary.
var coreModules = []registry.Module{
	&checkout.Module{},
	&setup_runtime.Module{},
	&coverage_upload.Module{},
}
