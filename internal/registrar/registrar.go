// Package registrar publishes declared commands to Discord and keeps their
// permission overwrites in sync.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/cache"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/permissions"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
	"golang.org/x/time/rate"
)

var ErrNoGuild = errors.New("guild command has no guild")

// Registrar registers, unregisters and refreshes command records. Records
// that are not commands are ignored.
type Registrar interface {
	RegisterAll(ctx context.Context, records []*models.Record) error
	UnregisterAll(ctx context.Context, records []*models.Record) error
	RefreshAll(ctx context.Context, records []*models.Record) error

	RegisterGuild(ctx context.Context, guildID string, records []*models.Record) error
	UnregisterGuild(ctx context.Context, guildID string, records []*models.Record) error
	RefreshGuild(ctx context.Context, guildID string, records []*models.Record) error
}

// Remote is what Discord knows about a registered record.
type Remote struct {
	ID         string
	GuildID    string
	Registered bool
}

// State maps records to their remote registration.
type State struct {
	mu      sync.RWMutex
	remotes map[*models.Record]Remote
}

func NewState() *State {
	return &State{remotes: make(map[*models.Record]Remote)}
}

func (s *State) Get(rec *models.Record) (Remote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.remotes[rec]
	return r, ok && r.Registered
}

func (s *State) Set(rec *models.Record, r Remote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes[rec] = r
}

func (s *State) Forget(rec *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remotes, rec)
}

// GuildResolver picks the guild a non-global command is registered in.
type GuildResolver interface {
	Guild(ctx context.Context, rec *models.Record) (string, error)
}

// RecordGuild uses the guild set on the record.
type RecordGuild struct{}

func (RecordGuild) Guild(_ context.Context, rec *models.Record) (string, error) {
	if rec.GuildID() == "" {
		return "", ErrNoGuild
	}
	return rec.GuildID(), nil
}

// OneGuild registers every guild command in a single guild.
type OneGuild string

func (g OneGuild) Guild(context.Context, *models.Record) (string, error) {
	if g == "" {
		return "", ErrNoGuild
	}
	return string(g), nil
}

type options struct {
	l        *slog.Logger
	resolver permissions.Resolver
	guilds   GuildResolver
	state    *State
	hashes   cache.HashStore
	commands *cache.Commands
	limiter  *rate.Limiter
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.l = l }
}

func WithPermissions(r permissions.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

func WithGuildResolver(g GuildResolver) Option {
	return func(o *options) { o.guilds = g }
}

func WithState(s *State) Option {
	return func(o *options) { o.state = s }
}

// WithHashStore lets the bulk registrar skip overwriting unchanged command
// sets. It needs a command cache to recover remote ids.
func WithHashStore(h cache.HashStore) Option {
	return func(o *options) { o.hashes = h }
}

func WithCache(c *cache.Commands) Option {
	return func(o *options) { o.commands = c }
}

// WithLimiter throttles one-by-one remote mutations.
func WithLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

func newOptions(opts []Option) options {
	o := options{
		l:        slog.Default(),
		resolver: permissions.Everyone{},
		guilds:   RecordGuild{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.state == nil {
		o.state = NewState()
	}
	return o
}

// refreshCache arms the command cache's periodic reset on first use. Within
// a window it leaves the cached view alone.
func (o *options) refreshCache() {
	if o.commands != nil {
		o.commands.ResetIfNeeded()
	}
}

// invalidateCache drops the cached view after this registrar changed the
// remote commands.
func (o *options) invalidateCache() {
	if o.commands != nil {
		o.commands.Reset(true)
	}
}

// guildOf returns "" for global commands.
func (o *options) guildOf(ctx context.Context, rec *models.Record) (string, error) {
	if rec.Global() {
		return "", nil
	}

	guildID, err := o.guilds.Guild(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("resolving guild of command %q: %w", rec.Name(), err)
	}
	return guildID, nil
}

// desired builds the command to send for rec without touching the record.
func (o *options) desired(ctx context.Context, rec *models.Record) (*dg.ApplicationCommand, error) {
	everyone, err := o.resolver.IsForEveryone(ctx, rec)
	if err != nil {
		return nil, errutil.With(err)
	}

	cmd := rec.Command()
	cmd.DefaultPermission = &everyone

	result := utils.ValidateCommand(cmd)
	if result.WasModified {
		o.l.Warn("command was modified during validation", "command", cmd.Name, "errors", result.Errors)
	}

	return result.Command, nil
}

func commandsOf(records []*models.Record) []*models.Record {
	var out []*models.Record
	for _, rec := range records {
		if rec.Kind() == models.KindCommand {
			out = append(out, rec)
		}
	}
	return out
}

// partition groups command records by scope, "" being global.
func (o *options) partition(ctx context.Context, records []*models.Record) (map[string][]*models.Record, error) {
	scopes := map[string][]*models.Record{"": nil}
	for _, rec := range commandsOf(records) {
		guildID, err := o.guildOf(ctx, rec)
		if err != nil {
			return nil, err
		}
		scopes[guildID] = append(scopes[guildID], rec)
	}
	return scopes, nil
}

// inGuild keeps the guild command records that resolve to guildID.
func (o *options) inGuild(ctx context.Context, guildID string, records []*models.Record) ([]*models.Record, error) {
	var out []*models.Record
	for _, rec := range commandsOf(records) {
		if rec.Global() {
			continue
		}
		g, err := o.guildOf(ctx, rec)
		if err != nil {
			return nil, err
		}
		if g == guildID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func scopeName(guildID string) string {
	if guildID == "" {
		return models.ScopeGlobal
	}
	return guildID
}
