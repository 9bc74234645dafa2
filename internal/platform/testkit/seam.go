package testkit

import (
	"sync"
	"testing"
)

// global lock for tests that touch process state (env, registries, seams)
var serial sync.Mutex

// Swap replaces *target with v until the test ends
func Swap[T any](t testing.TB, target *T, v T) {
	t.Helper()
	prev := *target
	*target = v
	t.Cleanup(func() { *target = prev })
}

// Serial holds the process lock until the test ends.
// Tests calling it must not call t.Parallel
func Serial(t testing.TB) {
	t.Helper()
	serial.Lock()
	t.Cleanup(serial.Unlock)
}
