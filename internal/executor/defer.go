package executor

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/graxinc/errutil"
)

const DefaultDeferMessage = "I am thinking..."

// AutoDefer acknowledges the interaction ephemerally before the handler runs.
// An empty message sends a plain defer instead of a response.
type AutoDefer struct {
	d       Deferrer
	message string
	next    Executor
}

func NewAutoDefer(d Deferrer, message string, next Executor) *AutoDefer {
	return &AutoDefer{d: d, message: message, next: next}
}

func (a *AutoDefer) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	var err error
	if a.message == "" {
		err = a.d.Defer(ctx, i, true)
	} else {
		err = a.d.Respond(ctx, i, a.message, true)
	}
	if err != nil {
		return errutil.With(err)
	}

	return a.next.Execute(ctx, rec, i)
}
