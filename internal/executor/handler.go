package executor

import (
	"context"
	"log/slog"
	"runtime"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
)

// Handler is the innermost executor. Handler errors and panics are logged
// and never returned; cancellation ends the invocation quietly.
type Handler struct {
	l        *slog.Logger
	factory  Factory
	reporter Reporter
}

func NewHandler(l *slog.Logger, factory Factory) *Handler {
	return &Handler{l: l, factory: factory}
}

func (h *Handler) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	name := utils.InteractionName(i)

	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			h.l.Error("panic recovered", "interaction", name, "recovered", r, "stack", string(stack))
		}
	}()

	h.l.Info("handling interaction", "interaction", utils.FormatInteraction(i), "kind", rec.Kind(), "user", utils.InteractionUser(i))

	if err := h.run(ctx, rec, i); err != nil {
		if canceled(ctx, err) {
			return nil
		}
		h.l.Error("interaction handler failed", "interaction", name, "error", err)
		h.report(ctx, i, name, err)
	}

	return nil
}

// WithReporter makes failures returned by handlers visible to the user.
func (h *Handler) WithReporter(r Reporter) *Handler {
	h.reporter = r
	return h
}

func (h *Handler) report(ctx context.Context, i *dg.Interaction, name string, err error) {
	f, ok := utils.AsFailure(err)
	if !ok || h.reporter == nil {
		return
	}
	if err := h.reporter.Fail(ctx, i, f); err != nil {
		h.l.Error("error reporting failure", "interaction", name, "error", err)
	}
}

func (h *Handler) run(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	if handler := rec.Handler(); handler != nil {
		return handler(ctx, i)
	}

	instanced := rec.InstancedHandler()
	if instanced == nil {
		return models.ErrNoHandler
	}
	if h.factory == nil {
		return ErrNoFactory
	}

	instance, err := h.factory(ctx, rec, i)
	if err != nil {
		return err
	}

	return instanced(ctx, instance, i)
}
