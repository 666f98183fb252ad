package executor

import (
	"context"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/permissions"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
)

// PermissionCheck only calls the next executor when the resolver allows the
// invoking user. Denials are logged and otherwise silent.
type PermissionCheck struct {
	l        *slog.Logger
	resolver permissions.Resolver
	next     Executor
}

func NewPermissionCheck(l *slog.Logger, resolver permissions.Resolver, next Executor) *PermissionCheck {
	return &PermissionCheck{l: l, resolver: resolver, next: next}
}

func (p *PermissionCheck) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	ok, err := p.resolver.HasPermission(ctx, i, rec)
	if err != nil {
		return errutil.With(err)
	}

	if !ok {
		p.l.Warn("user lacks permission for interaction",
			"interaction", utils.InteractionName(i),
			"user", utils.InteractionUser(i),
		)
		return nil
	}

	return p.next.Execute(ctx, rec, i)
}
