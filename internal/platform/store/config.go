package store

import (
	"time"

	"feedmirror/internal/platform/logger"
)

// Config selects and configures backends. AppName tags sessions on both databases
type Config struct {
	AppName string
	PG      PGConfig
	CH      CHConfig
	Landing LandingConfig
}

// PGConfig is the optional ledger database
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// boot ping: ConnectRetries attempts (6 when 0), each bounded by PingTimeout (3s when 0)
	ConnectRetries int
	PingTimeout    time.Duration
}

// CHConfig is the warehouse. Role defaults to AppName in the client info
type CHConfig struct {
	Enabled        bool
	URL            string
	LogSQL         bool
	SlowQueryMs    int
	DialTimeout    time.Duration
	Role           string
	ConnectRetries int
}

// LandingConfig is the S3 compatible bucket segments are staged in
type LandingConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	PublicURL string
}

// Option adjusts the Store before any backend opens
type Option func(*Store) error

// WithLogger routes backend tracing and boot logs to log
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
