package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
	"golang.org/x/sync/singleflight"
)

const DefaultWindow = 300 * time.Second

const globalKey = "global"

// Lister is the part of the REST client the command cache reads from.
type Lister interface {
	ApplicationID(ctx context.Context) (string, error)
	Commands(ctx context.Context, guildID string) ([]*dg.ApplicationCommand, error)
}

type options struct {
	l      *slog.Logger
	window time.Duration
	now    func() time.Time
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithWindow sets how long a fetched scope is served before refetching.
func WithWindow(d time.Duration) Option {
	return func(o *options) { o.window = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

type scope struct {
	commands []*dg.ApplicationCommand
	fetched  time.Time
}

// Commands caches the application's remote commands per scope. Returned
// commands are shared and must not be modified.
type Commands struct {
	client Lister
	opts   options
	group  singleflight.Group

	mu     sync.Mutex
	appID  string
	gen    uint64
	scopes map[string]scope
	timer  *time.Timer
}

func NewCommands(client Lister, opts ...Option) *Commands {
	o := options{
		l:      slog.Default(),
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Commands{
		client: client,
		opts:   o,
		scopes: make(map[string]scope),
	}
}

func (c *Commands) GlobalCommands(ctx context.Context) ([]*dg.ApplicationCommand, error) {
	return c.get(ctx, "")
}

func (c *Commands) GuildCommands(ctx context.Context, guildID string) ([]*dg.ApplicationCommand, error) {
	return c.get(ctx, guildID)
}

// GlobalCommand looks a global command up by name.
func (c *Commands) GlobalCommand(ctx context.Context, name string, typ dg.ApplicationCommandType) (*dg.ApplicationCommand, error) {
	cmds, err := c.GlobalCommands(ctx)
	if err != nil {
		return nil, err
	}
	return Find(cmds, name, typ), nil
}

func (c *Commands) GuildCommand(ctx context.Context, guildID, name string, typ dg.ApplicationCommandType) (*dg.ApplicationCommand, error) {
	cmds, err := c.GuildCommands(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return Find(cmds, name, typ), nil
}

// Find returns the command with the given name and type, or nil. A zero
// type matches chat input commands.
func Find(cmds []*dg.ApplicationCommand, name string, typ dg.ApplicationCommandType) *dg.ApplicationCommand {
	if typ == 0 {
		typ = dg.ChatApplicationCommand
	}

	for _, cmd := range cmds {
		t := cmd.Type
		if t == 0 {
			t = dg.ChatApplicationCommand
		}
		if cmd.Name == name && t == typ {
			return cmd
		}
	}
	return nil
}

// Reset drops every cached scope and disarms a pending auto reset. With
// autoReset a new timer resets the cache again once the window elapses.
func (c *Commands) Reset(autoReset bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rearm(autoReset)
}

func (c *Commands) rearm(autoReset bool) {
	c.reset()
	c.stopTimer()

	if !autoReset {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(c.opts.window, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.timer != t {
			return
		}
		c.timer = nil
		c.reset()
		c.opts.l.Debug("command cache auto reset")
	})
	c.timer = t
}

// ResetIfNeeded resets and arms the auto reset, unless one is already
// pending. Callers can invoke it before every registration pass.
func (c *Commands) ResetIfNeeded() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer == nil {
		c.rearm(true)
	}
}

func (c *Commands) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimer()
}

func (c *Commands) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Commands) reset() {
	c.gen++
	c.scopes = make(map[string]scope)
}

func (c *Commands) get(ctx context.Context, guildID string) ([]*dg.ApplicationCommand, error) {
	key := scopeKey(guildID)

	if cmds, ok := c.fresh(key); ok {
		return cmds, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if cmds, ok := c.fresh(key); ok {
			return cmds, nil
		}
		return c.fetch(ctx, guildID, key)
	})
	if err != nil {
		return nil, err
	}

	return slices.Clone(v.([]*dg.ApplicationCommand)), nil
}

func (c *Commands) fresh(key string) ([]*dg.ApplicationCommand, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.scopes[key]
	if !ok || c.opts.now().Sub(s.fetched) >= c.opts.window {
		return nil, false
	}
	return slices.Clone(s.commands), true
}

func (c *Commands) fetch(ctx context.Context, guildID, key string) ([]*dg.ApplicationCommand, error) {
	appID, err := c.applicationID(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	remote, err := c.client.Commands(ctx, guildID)
	if err != nil {
		return nil, errutil.With(err)
	}

	own := make([]*dg.ApplicationCommand, 0, len(remote))
	for _, cmd := range remote {
		if cmd.ApplicationID == appID {
			own = append(own, cmd)
		}
	}

	c.mu.Lock()
	if gen == c.gen {
		c.scopes[key] = scope{commands: own, fetched: c.opts.now()}
	}
	c.mu.Unlock()

	c.opts.l.Debug("fetched remote commands", "scope", key, "commands", len(own))

	return own, nil
}

func (c *Commands) applicationID(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.appID
	c.mu.Unlock()

	if id != "" {
		return id, nil
	}

	id, err := c.client.ApplicationID(ctx)
	if err != nil {
		return "", errutil.With(err)
	}

	c.mu.Lock()
	c.appID = id
	c.mu.Unlock()

	return id, nil
}

func scopeKey(guildID string) string {
	if guildID == "" {
		return globalKey
	}
	return "guild:" + guildID
}
