package app

import (
	"github.com/castorbuild/castor/internal/registry"
	"github.com/castorbuild/castor/modules/download"
	"github.com/castorbuild/castor/modules/shell"
	"github.com/castorbuild/castor/modules/sleep"
)

// coreModules is the definitive list of all modules that are compiled into
// the castor binary.
var coreModules = []registry.Module{
	&download.Module{},
	&shell.Module{},
	&sleep.Module{},
}
