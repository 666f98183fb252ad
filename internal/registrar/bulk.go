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

// Bulk overwrites each scope's command set in one call. The global scope is
// always overwritten, so global commands that are no longer declared
// disappear.
type Bulk struct {
	client rest.Client
	options
}

func NewBulk(client rest.Client, opts ...Option) *Bulk {
	return &Bulk{client: client, options: newOptions(opts)}
}

func (b *Bulk) State() *State {
	return b.state
}

func (b *Bulk) RegisterAll(ctx context.Context, records []*models.Record) error {
	return b.registerAll(ctx, records, false)
}

// RefreshAll overwrites every scope even when its hash is unchanged.
func (b *Bulk) RefreshAll(ctx context.Context, records []*models.Record) error {
	return b.registerAll(ctx, records, true)
}

func (b *Bulk) UnregisterAll(ctx context.Context, records []*models.Record) error {
	scopes, err := b.partition(ctx, records)
	if err != nil {
		return err
	}

	b.refreshCache()

	var mutated atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for guildID, recs := range scopes {
		g.Go(func() error {
			return b.clear(gctx, guildID, recs, &mutated)
		})
	}
	err = g.Wait()

	if mutated.Load() {
		b.invalidateCache()
	}
	return err
}

func (b *Bulk) RegisterGuild(ctx context.Context, guildID string, records []*models.Record) error {
	return b.registerGuild(ctx, guildID, records, false)
}

func (b *Bulk) RefreshGuild(ctx context.Context, guildID string, records []*models.Record) error {
	return b.registerGuild(ctx, guildID, records, true)
}

func (b *Bulk) UnregisterGuild(ctx context.Context, guildID string, records []*models.Record) error {
	recs, err := b.inGuild(ctx, guildID, records)
	if err != nil {
		return err
	}

	b.refreshCache()

	var mutated atomic.Bool
	err = b.clear(ctx, guildID, recs, &mutated)
	if mutated.Load() {
		b.invalidateCache()
	}
	return err
}

func (b *Bulk) registerAll(ctx context.Context, records []*models.Record, force bool) error {
	scopes, err := b.partition(ctx, records)
	if err != nil {
		return err
	}

	b.refreshCache()

	var mutated atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for guildID, recs := range scopes {
		g.Go(func() error {
			return b.overwrite(gctx, guildID, recs, force, &mutated)
		})
	}
	err = g.Wait()

	if mutated.Load() {
		b.invalidateCache()
	}
	return err
}

func (b *Bulk) registerGuild(ctx context.Context, guildID string, records []*models.Record, force bool) error {
	recs, err := b.inGuild(ctx, guildID, records)
	if err != nil {
		return err
	}

	b.refreshCache()

	var mutated atomic.Bool
	err = b.overwrite(ctx, guildID, recs, force, &mutated)
	if mutated.Load() {
		b.invalidateCache()
	}
	return err
}

type declared struct {
	rec *models.Record
	cmd *dg.ApplicationCommand
}

func (b *Bulk) overwrite(ctx context.Context, guildID string, recs []*models.Record, force bool, mutated *atomic.Bool) error {
	decls := make([]declared, 0, len(recs))
	cmds := make([]*dg.ApplicationCommand, 0, len(recs))
	for _, rec := range recs {
		cmd, err := b.desired(ctx, rec)
		if err != nil {
			return fmt.Errorf("registering command %q: %w", rec.Name(), err)
		}
		decls = append(decls, declared{rec: rec, cmd: cmd})
		cmds = append(cmds, cmd)
	}

	hash := utils.HashCommands(cmds)
	if !force && b.unchanged(ctx, guildID, hash, decls) {
		b.l.Info("command set unchanged", "guild", scopeName(guildID), "commands", len(cmds))
		return b.syncPermissions(ctx, guildID, decls)
	}

	remote, err := b.client.OverwriteCommands(ctx, guildID, cmds)
	if err != nil {
		return fmt.Errorf("overwriting commands of %s: %w", scopeName(guildID), err)
	}
	mutated.Store(true)

	for _, d := range decls {
		found := cache.Find(remote, d.cmd.Name, d.cmd.Type)
		if found == nil {
			b.l.Warn("command missing from overwrite result", "command", d.cmd.Name, "guild", scopeName(guildID))
			b.state.Forget(d.rec)
			continue
		}
		b.state.Set(d.rec, Remote{ID: found.ID, GuildID: guildID, Registered: true})
	}

	if b.hashes != nil {
		if err := b.hashes.SetCommandSetHash(ctx, scopeName(guildID), hash); err != nil {
			b.l.Warn("error storing command set hash", "guild", scopeName(guildID), "error", err)
		}
	}

	b.l.Info("command set loaded", "guild", scopeName(guildID), "commands", len(cmds))

	return b.syncPermissions(ctx, guildID, decls)
}

// unchanged reports whether the stored hash matches and every command's
// remote id could be recovered from the cache.
func (b *Bulk) unchanged(ctx context.Context, guildID, hash string, decls []declared) bool {
	if b.hashes == nil || b.commands == nil {
		return false
	}

	stored, err := b.hashes.CommandSetHash(ctx, scopeName(guildID))
	if err != nil {
		b.l.Warn("error reading command set hash", "guild", scopeName(guildID), "error", err)
		return false
	}
	if stored != hash {
		return false
	}

	var remote []*dg.ApplicationCommand
	if guildID == "" {
		remote, err = b.commands.GlobalCommands(ctx)
	} else {
		remote, err = b.commands.GuildCommands(ctx, guildID)
	}
	if err != nil {
		b.l.Warn("error listing remote commands", "guild", scopeName(guildID), "error", err)
		return false
	}

	ids := make(map[*models.Record]string, len(decls))
	for _, d := range decls {
		found := cache.Find(remote, d.cmd.Name, d.cmd.Type)
		if found == nil {
			return false
		}
		ids[d.rec] = found.ID
	}

	for rec, id := range ids {
		b.state.Set(rec, Remote{ID: id, GuildID: guildID, Registered: true})
	}
	return true
}

// syncPermissions sends one batched update with the guild commands whose
// overwrites differ. Global commands never carry overwrites.
func (b *Bulk) syncPermissions(ctx context.Context, guildID string, decls []declared) error {
	if guildID == "" {
		return nil
	}

	var batch []*dg.GuildApplicationCommandPermissions
	for _, d := range decls {
		remote, ok := b.state.Get(d.rec)
		if !ok {
			continue
		}

		perms, err := b.pendingPermissions(ctx, b.client, guildID, remote.ID, d.rec)
		if err != nil {
			return err
		}
		if perms == nil {
			continue
		}

		batch = append(batch, &dg.GuildApplicationCommandPermissions{
			ID:          remote.ID,
			GuildID:     guildID,
			Permissions: perms,
		})
	}

	if len(batch) == 0 {
		return nil
	}

	if err := b.client.BatchEditPermissions(ctx, guildID, batch); err != nil {
		return fmt.Errorf("updating permissions of %s: %w", guildID, err)
	}

	b.l.Info("command permissions updated", "guild", guildID, "commands", len(batch))
	return nil
}

func (b *Bulk) clear(ctx context.Context, guildID string, recs []*models.Record, mutated *atomic.Bool) error {
	if _, err := b.client.OverwriteCommands(ctx, guildID, nil); err != nil {
		return fmt.Errorf("clearing commands of %s: %w", scopeName(guildID), err)
	}
	mutated.Store(true)

	for _, rec := range recs {
		b.state.Forget(rec)
	}

	if b.hashes != nil {
		if err := b.hashes.SetCommandSetHash(ctx, scopeName(guildID), utils.HashCommands(nil)); err != nil {
			return errutil.With(err)
		}
	}

	b.l.Info("command set cleared", "guild", scopeName(guildID))
	return nil
}
