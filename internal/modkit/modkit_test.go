package modkit

import (
	"testing"

	phttp "feedmirror/internal/platform/net/http"
)

type stub struct{ mounted bool }

func (s *stub) MountRoutes(phttp.Router) { s.mounted = true }
func (s *stub) Ports() any               { return nil }
func (s *stub) Name() string             { return "stub" }

func TestModule_IsModulePackageContract(t *testing.T) {
	var m Module = &stub{}
	m.MountRoutes(nil)
	if !m.(*stub).mounted || m.Name() != "stub" {
		t.Fatalf("unexpected module: %+v", m)
	}
}
