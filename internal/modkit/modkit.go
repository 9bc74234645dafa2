// Package modkit builds modules from shared deps and options
package modkit

import "feedmirror/internal/modkit/module"

// Module is the contract every module satisfies
type Module = module.Module
