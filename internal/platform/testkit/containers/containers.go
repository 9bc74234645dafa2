// Package containers starts throwaway database containers for integration tests
package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startTimeout = 3 * time.Minute

const (
	pgPort     nat.Port = "5432/tcp"
	chPort     nat.Port = "9000/tcp"
	chHTTPPort nat.Port = "8123/tcp"
)

// start runs req and returns host:port for port. The container is removed when t ends
func start(t testing.TB, req tc.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mp, err := c.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return fmt.Sprintf("%s:%s", host, mp.Port())
}

// Postgres starts postgres:16-alpine and returns its DSN
func Postgres(t testing.TB) string {
	t.Helper()
	addr := start(t, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{string(pgPort)},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		// postgres logs ready twice: once for the init server, once for the real one
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(pgPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(2 * time.Minute),
	}, pgPort)
	return "postgres://postgres:postgres@" + addr + "/postgres?sslmode=disable"
}

// ClickHouse starts a single node server and returns a native protocol DSN
func ClickHouse(t testing.TB) string {
	t.Helper()
	addr := start(t, tc.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.8-alpine",
		ExposedPorts: []string{string(chPort), string(chHTTPPort)},
		Env: map[string]string{
			"CLICKHOUSE_USER":     "feedmirror",
			"CLICKHOUSE_PASSWORD": "feedmirror",
			"CLICKHOUSE_DB":       "default",
		},
		WaitingFor: wait.ForHTTP("/ping").WithPort(chHTTPPort).WithStartupTimeout(2 * time.Minute),
	}, chPort)
	return "clickhouse://feedmirror:feedmirror@" + addr + "/default"
}
