// Package executor composes the decorators that run a matched interaction's
// handler: permission checks, auto-defer, worker pool dispatch, once-only
// execution and sibling cleanup.
package executor

import (
	"context"
	"errors"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
)

var (
	ErrNoLogger   = errors.New("executor needs a logger")
	ErrNoDeferrer = errors.New("auto defer needs a deferrer")
	ErrNoFactory  = errors.New("instanced handler needs an instance factory")
)

type Executor interface {
	Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error
}

// Func adapts a plain function to an Executor.
type Func func(ctx context.Context, rec *models.Record, i *dg.Interaction) error

func (f Func) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	return f(ctx, rec, i)
}

// Remover is the part of the holder the cleanup decorators need.
type Remover interface {
	Remove(rec *models.Record)
}

// Deferrer sends the immediate acknowledgement used by AutoDefer.
type Deferrer interface {
	Defer(ctx context.Context, i *dg.Interaction, ephemeral bool) error
	Respond(ctx context.Context, i *dg.Interaction, content string, ephemeral bool) error
}

// Reporter shows a handler's utils.Failure to the invoking user.
type Reporter interface {
	Fail(ctx context.Context, i *dg.Interaction, f utils.Failure) error
}

// Factory builds the per-invocation instance for instanced handlers.
type Factory func(ctx context.Context, rec *models.Record, i *dg.Interaction) (any, error)

func canceled(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
