package modkit

import (
	"feedmirror/internal/modkit/repokit"
	"feedmirror/internal/platform/config"
	"feedmirror/internal/platform/logger"
	"feedmirror/internal/platform/store"
)

// Deps are the process-wide handles main opens once and passes to every module.
// PG is nil when no Postgres is configured
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	PG      repokit.TxRunner
	CH      store.Clickhouse
	Landing store.Landing
}
