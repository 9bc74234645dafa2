// Package testkit holds small assertions shared by package tests
package testkit

import (
	"strings"
	"testing"
)

// MustPanic fails the test unless fn panics and returns the recovered value
func MustPanic(t testing.TB, fn func()) (v any) {
	t.Helper()
	defer func() {
		v = recover()
		if v == nil {
			t.Fatalf("expected panic")
		}
	}()
	fn()
	return nil
}

// MustContain fails when out lacks want; the full output goes to the test log
func MustContain(t testing.TB, out, want string) {
	t.Helper()
	if strings.Contains(out, want) {
		return
	}
	t.Logf("output:\n%s", out)
	t.Fatalf("missing %q", want)
}
