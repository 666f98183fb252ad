package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/glotchimo/herald/internal/components"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/holder"
	rp "github.com/glotchimo/herald/internal/response"
)

type Dependencies struct {
	Holder     *holder.Holder
	Responder  *rp.Responder
	Components *components.Helper
	Logger     *slog.Logger

	// Executors returns a builder preconfigured with the shared logger,
	// pool, deferrer and permission check.
	Executors func() *executor.Builder

	GuildID string
	Latency func() time.Duration
	Quit    func()
}

// Group declares a set of related interactions by adding them to the holder.
type Group interface {
	Setup(ctx context.Context, dep Dependencies) error
}
