// Package module holds the module contract, port lookup and the bootstrap registry
package module

import (
	phttp "feedmirror/internal/platform/net/http"
)

// Module is a unit main wires: it may mount status routes and exposes a port set
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
