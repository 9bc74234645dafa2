package ch

import (
	"os"
	"strings"

	"feedmirror/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo names this process in system.query_log's client fields.
// tag overrides the build version when set
func BuildClientInfo(role, tag string) clickhouse.ClientInfo {
	bi := version.Info()
	host, _ := os.Hostname()
	if strings.TrimSpace(tag) == "" {
		tag = bi.Version
	}
	ci := clickhouse.ClientInfo{}
	for _, p := range [][2]string{
		{bi.Service, tag},
		{"role", role},
		{"commit", bi.Commit},
		{"go", bi.GoVersion},
		{"host", host},
	} {
		v := strings.TrimSpace(p[1])
		if v == "" {
			v = "unknown"
		}
		ci.Products = append(ci.Products, struct{ Name, Version string }{p[0], v})
	}
	return ci
}
