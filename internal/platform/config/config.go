// Package config reads typed settings from environment variables.
// Must* panics on a missing or malformed value; May* falls back to a default
// and warns when a value is present but unparseable
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"feedmirror/internal/platform/logger"
)

// Conf is a prefixed view over the environment, e.g. New().Prefix("CORE_MIRROR_")
type Conf struct{ prefix string }

// New returns the root Conf
func New() Conf { return Conf{} }

// Prefix returns a child view; prefixes nest
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// Key returns the full env var name for k
func (c Conf) Key(k string) string { return c.prefix + k }

func (c Conf) lookup(k string) string { return strings.TrimSpace(os.Getenv(c.Key(k))) }

// may parses key with parse, returning def when unset or invalid
func may[T any](c Conf, key string, def T, parse func(string) (T, error)) T {
	s := c.lookup(key)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.Key(key)).Str("value", s).Interface("default", def).
			Msg("config: invalid value; using default")
		return def
	}
	return v
}

// MustString returns the value and panics when unset
func (c Conf) MustString(key string) string {
	v := c.lookup(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.Key(key)).Msg("config: missing required env")
	}
	return v
}

// MayString returns the value or def
func (c Conf) MayString(key, def string) string {
	if v := c.lookup(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the value or def
func (c Conf) MayInt(key string, def int) int { return may(c, key, def, strconv.Atoi) }

// MayFloat64 returns the value or def
func (c Conf) MayFloat64(key string, def float64) float64 {
	return may(c, key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

// MayBool returns the value or def
func (c Conf) MayBool(key string, def bool) bool { return may(c, key, def, strconv.ParseBool) }

// MayDuration returns the value or def; values look like 250ms, 10s, 168h
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, time.ParseDuration)
}

// MayEnum returns the value or def and panics when it is not one of allowed.
// Matching ignores case; the value comes back as written
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return v
		}
	}
	if v == "" {
		return v
	}
	logger.Get().Panic().Str("key", c.Key(key)).Str("value", v).Strs("allowed", allowed).
		Msg("config: invalid enum value")
	return ""
}
