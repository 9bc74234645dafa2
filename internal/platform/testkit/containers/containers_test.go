package containers

import (
	"testing"

	"github.com/docker/go-connections/nat"
)

func TestPorts(t *testing.T) {
	cases := []struct {
		port  nat.Port
		proto string
		num   int
	}{
		{pgPort, "tcp", 5432},
		{chPort, "tcp", 9000},
		{chHTTPPort, "tcp", 8123},
	}
	for _, tc := range cases {
		if tc.port.Proto() != tc.proto || tc.port.Int() != tc.num {
			t.Fatalf("%s: proto=%s num=%d", tc.port, tc.port.Proto(), tc.port.Int())
		}
		if _, err := nat.ParsePort(tc.port.Port()); err != nil {
			t.Fatalf("%s: %v", tc.port, err)
		}
	}
}
