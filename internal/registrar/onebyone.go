package registrar

import (
	"context"
	"fmt"
	"sync/atomic"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/cache"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/rest"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
	"golang.org/x/sync/errgroup"
)

// OneByOne creates, edits and deletes commands individually, touching only
// the ones whose remote shape differs. Commands it does not know about are
// left alone.
type OneByOne struct {
	client rest.Client
	options
}

func NewOneByOne(client rest.Client, commands *cache.Commands, opts ...Option) *OneByOne {
	o := OneByOne{client: client, options: newOptions(opts)}
	o.commands = commands
	return &o
}

func (o *OneByOne) State() *State {
	return o.state
}

func (o *OneByOne) RegisterAll(ctx context.Context, records []*models.Record) error {
	return o.each(ctx, commandsOf(records), o.register)
}

func (o *OneByOne) UnregisterAll(ctx context.Context, records []*models.Record) error {
	return o.each(ctx, commandsOf(records), o.unregister)
}

// RefreshAll drops the cached view first so every command is compared
// against Discord's current state.
func (o *OneByOne) RefreshAll(ctx context.Context, records []*models.Record) error {
	o.commands.Reset(true)
	return o.RegisterAll(ctx, records)
}

func (o *OneByOne) RegisterGuild(ctx context.Context, guildID string, records []*models.Record) error {
	recs, err := o.inGuild(ctx, guildID, records)
	if err != nil {
		return err
	}
	return o.each(ctx, recs, o.register)
}

func (o *OneByOne) UnregisterGuild(ctx context.Context, guildID string, records []*models.Record) error {
	recs, err := o.inGuild(ctx, guildID, records)
	if err != nil {
		return err
	}
	return o.each(ctx, recs, o.unregister)
}

func (o *OneByOne) RefreshGuild(ctx context.Context, guildID string, records []*models.Record) error {
	o.commands.Reset(true)
	return o.RegisterGuild(ctx, guildID, records)
}

type step func(ctx context.Context, rec *models.Record, mutated *atomic.Bool) error

// each runs fn for every record concurrently; the first error cancels the
// rest. The command cache is reset when anything changed remotely.
func (o *OneByOne) each(ctx context.Context, recs []*models.Record, fn step) error {
	o.refreshCache()

	var mutated atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range recs {
		g.Go(func() error {
			return fn(gctx, rec, &mutated)
		})
	}
	err := g.Wait()

	if mutated.Load() {
		o.invalidateCache()
	}
	return err
}

func (o *OneByOne) register(ctx context.Context, rec *models.Record, mutated *atomic.Bool) error {
	if err := o.registerOne(ctx, rec, mutated); err != nil {
		return fmt.Errorf("registering command %q: %w", rec.Name(), err)
	}
	return nil
}

func (o *OneByOne) registerOne(ctx context.Context, rec *models.Record, mutated *atomic.Bool) error {
	guildID, err := o.guildOf(ctx, rec)
	if err != nil {
		return err
	}

	cmd, err := o.desired(ctx, rec)
	if err != nil {
		return err
	}

	existing, err := o.lookup(ctx, guildID, cmd)
	if err != nil {
		return err
	}

	var id string
	switch {
	case existing == nil:
		if err := o.wait(ctx); err != nil {
			return err
		}
		created, err := o.client.CreateCommand(ctx, guildID, cmd)
		if err != nil {
			return errutil.With(err)
		}
		mutated.Store(true)
		id = created.ID
		o.l.Info("command created", "command", cmd.Name, "guild", scopeName(guildID))

	case !utils.SameCommand(existing, cmd):
		if err := o.wait(ctx); err != nil {
			return err
		}
		edited, err := o.client.EditCommand(ctx, guildID, existing.ID, cmd)
		if err != nil {
			return errutil.With(err)
		}
		mutated.Store(true)
		id = edited.ID
		o.l.Info("command edited", "command", cmd.Name, "guild", scopeName(guildID))

	default:
		id = existing.ID
	}

	o.state.Set(rec, Remote{ID: id, GuildID: guildID, Registered: true})

	if guildID == "" {
		return nil
	}

	perms, err := o.pendingPermissions(ctx, o.client, guildID, id, rec)
	if err != nil || perms == nil {
		return err
	}

	if err := o.wait(ctx); err != nil {
		return err
	}
	if err := o.client.EditCommandPermissions(ctx, guildID, id, perms); err != nil {
		return errutil.With(err)
	}
	o.l.Info("command permissions updated", "command", cmd.Name, "guild", guildID)

	return nil
}

func (o *OneByOne) unregister(ctx context.Context, rec *models.Record, mutated *atomic.Bool) error {
	if err := o.unregisterOne(ctx, rec, mutated); err != nil {
		return fmt.Errorf("unregistering command %q: %w", rec.Name(), err)
	}
	return nil
}

func (o *OneByOne) unregisterOne(ctx context.Context, rec *models.Record, mutated *atomic.Bool) error {
	remote, ok := o.state.Get(rec)
	if !ok {
		guildID, err := o.guildOf(ctx, rec)
		if err != nil {
			return err
		}
		cmd, err := o.desired(ctx, rec)
		if err != nil {
			return err
		}
		existing, err := o.lookup(ctx, guildID, cmd)
		if err != nil {
			return err
		}
		if existing == nil {
			return nil
		}
		remote = Remote{ID: existing.ID, GuildID: guildID}
	}

	if err := o.wait(ctx); err != nil {
		return err
	}
	if err := o.client.DeleteCommand(ctx, remote.GuildID, remote.ID); err != nil {
		return errutil.With(err)
	}
	mutated.Store(true)
	o.state.Forget(rec)

	o.l.Info("command deleted", "command", rec.Name(), "guild", scopeName(remote.GuildID))
	return nil
}

func (o *OneByOne) lookup(ctx context.Context, guildID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error) {
	if guildID == "" {
		return o.commands.GlobalCommand(ctx, cmd.Name, cmd.Type)
	}
	return o.commands.GuildCommand(ctx, guildID, cmd.Name, cmd.Type)
}

func (o *OneByOne) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return errutil.With(err)
	}
	return nil
}
