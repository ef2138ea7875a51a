package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// Importer runs one import request.
type Importer interface {
	Import(ctx context.Context, req domain.ImportRequest) (domain.ImportResult, error)
}

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Importer      Importer
	ReadyChecks   map[string]Pinger // store name -> pinger, probed by /readyz
	FallbackCount func() int64      // fallback events since start (nil if tiering disabled)

	BookmarkReloadTrigger chan struct{} // nil if bookmarks disabled

	AdminCIDRS          []string // IPs allowed to access readyz/reload endpoints
	TrustProxy          bool     // true if running behind a trusted reverse proxy
	ImportBurst         int      // per-IP import burst
	ImportRefillPerMin  int      // per-IP import refill rate
	MaxRequestBodyBytes int64    // import body limit
}
