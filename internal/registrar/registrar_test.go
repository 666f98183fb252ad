package registrar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/cache"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/permissions"
	"github.com/glotchimo/herald/internal/rest/resttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func noop(context.Context, *dg.Interaction) error { return nil }

func global(t *testing.T, name, description string) *models.Record {
	t.Helper()
	rec, err := models.NewCommand(&dg.ApplicationCommand{Name: name, Description: description}).
		WithHandler(noop).
		SetGlobal().
		Build()
	require.NoError(t, err)
	return rec
}

func guild(t *testing.T, name, guildID string) *models.Record {
	t.Helper()
	rec, err := models.NewCommand(&dg.ApplicationCommand{Name: name, Description: name}).
		WithHandler(noop).
		WithGuild(guildID).
		Build()
	require.NoError(t, err)
	return rec
}

func component(t *testing.T) *models.Record {
	t.Helper()
	rec, err := models.NewComponent(noop, "", "", "yes")
	require.NoError(t, err)
	return rec
}

func quiet() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}

type memoryHashes struct {
	mu     sync.Mutex
	hashes map[string]string
}

func (m *memoryHashes) CommandSetHash(_ context.Context, scope string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[scope], nil
}

func (m *memoryHashes) SetCommandSetHash(_ context.Context, scope, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[scope] = hash
	return nil
}

type batchRecorder struct {
	*resttest.Fake
	batches [][]*dg.GuildApplicationCommandPermissions
}

func (b *batchRecorder) BatchEditPermissions(ctx context.Context, guildID string, perms []*dg.GuildApplicationCommandPermissions) error {
	b.batches = append(b.batches, perms)
	return b.Fake.BatchEditPermissions(ctx, guildID, perms)
}

func TestBulkRegisterAll(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	ping := global(t, "ping", "Ping")
	quit := guild(t, "quit", "42")
	grant := permissions.Static{"quit": {Roles: []string{"admins"}}}

	b := NewBulk(fake, quiet(), WithPermissions(grant))
	require.NoError(t, b.RegisterAll(ctx, []*models.Record{ping, quit, component(t)}))

	assert.Equal(t, 2, fake.Calls("OverwriteCommands"))
	require.Len(t, fake.Stored(""), 1)
	require.Len(t, fake.Stored("42"), 1)

	remote, ok := b.State().Get(ping)
	require.True(t, ok)
	assert.Equal(t, fake.Stored("")[0].ID, remote.ID)

	remote, ok = b.State().Get(quit)
	require.True(t, ok)
	assert.Equal(t, "42", remote.GuildID)

	assert.Equal(t, 1, fake.Calls("BatchEditPermissions"))
	perms := fake.Permissions("42", remote.ID)
	require.Len(t, perms, 1)
	assert.Equal(t, "admins", perms[0].ID)

	stored := fake.Stored("42")[0]
	require.NotNil(t, stored.DefaultPermission)
	assert.False(t, *stored.DefaultPermission)
}

func TestBulkAlwaysOverwritesGlobal(t *testing.T) {
	fake := resttest.New()
	fake.Seed("", &dg.ApplicationCommand{Name: "stale"})

	require.NoError(t, NewBulk(fake, quiet()).RegisterAll(context.Background(), []*models.Record{guild(t, "quit", "42")}))

	assert.Equal(t, 2, fake.Calls("OverwriteCommands"))
	assert.Empty(t, fake.Stored(""))
}

func TestBulkMissingGuild(t *testing.T) {
	fake := resttest.New()
	orphan, err := models.NewCommand(&dg.ApplicationCommand{Name: "orphan"}).WithHandler(noop).Build()
	require.NoError(t, err)

	err = NewBulk(fake, quiet()).RegisterAll(context.Background(), []*models.Record{orphan})

	require.ErrorIs(t, err, ErrNoGuild)
	assert.Contains(t, err.Error(), `"orphan"`)
	assert.Equal(t, 0, fake.Mutations())
}

func TestBulkOneGuild(t *testing.T) {
	fake := resttest.New()
	orphan, err := models.NewCommand(&dg.ApplicationCommand{Name: "orphan"}).WithHandler(noop).Build()
	require.NoError(t, err)

	require.NoError(t, NewBulk(fake, quiet(), WithGuildResolver(OneGuild("7"))).RegisterAll(context.Background(), []*models.Record{orphan}))

	require.Len(t, fake.Stored("7"), 1)
	assert.Equal(t, "orphan", fake.Stored("7")[0].Name)
}

func TestBulkGlobalNeverGetsPermissions(t *testing.T) {
	fake := resttest.New()
	grant := permissions.Static{"ping": {Users: []string{"1"}}}

	require.NoError(t, NewBulk(fake, quiet(), WithPermissions(grant)).RegisterAll(context.Background(), []*models.Record{global(t, "ping", "Ping")}))

	assert.Equal(t, 0, fake.Calls("CommandPermissions"))
	assert.Equal(t, 0, fake.Calls("BatchEditPermissions"))
}

func TestBulkBatchesOnlyMismatches(t *testing.T) {
	ctx := context.Background()
	rec := &batchRecorder{Fake: resttest.New()}
	grant := permissions.Static{
		"quit": {Roles: []string{"admins"}},
		"kick": {Roles: []string{"mods"}},
		"open": {},
	}
	records := []*models.Record{guild(t, "quit", "42"), guild(t, "kick", "42"), guild(t, "open", "42")}

	b := NewBulk(rec, quiet(), WithPermissions(grant))
	require.NoError(t, b.RegisterAll(ctx, records))
	require.Len(t, rec.batches, 1)
	assert.Len(t, rec.batches[0], 2)

	remote, ok := b.State().Get(records[1])
	require.True(t, ok)
	require.NoError(t, rec.Fake.EditCommandPermissions(ctx, "42", remote.ID, nil))

	require.NoError(t, b.RegisterAll(ctx, records))
	require.Len(t, rec.batches, 2)
	require.Len(t, rec.batches[1], 1)
	assert.Equal(t, remote.ID, rec.batches[1][0].ID)
}

func TestBulkSkipsUnchangedSets(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	hashes := &memoryHashes{hashes: make(map[string]string)}
	commands := cache.NewCommands(fake, cache.WithLogger(slog.New(slog.DiscardHandler)))
	defer commands.Close()

	ping := global(t, "ping", "Ping")
	quit := guild(t, "quit", "42")
	records := []*models.Record{ping, quit}

	b := NewBulk(fake, quiet(), WithHashStore(hashes), WithCache(commands))
	require.NoError(t, b.RegisterAll(ctx, records))
	assert.Equal(t, 2, fake.Calls("OverwriteCommands"))
	assert.NotEmpty(t, hashes.hashes["global"])
	assert.NotEmpty(t, hashes.hashes["42"])

	state := NewState()
	b = NewBulk(fake, quiet(), WithHashStore(hashes), WithCache(commands), WithState(state))
	require.NoError(t, b.RegisterAll(ctx, records))
	assert.Equal(t, 2, fake.Calls("OverwriteCommands"))

	remote, ok := state.Get(quit)
	require.True(t, ok)
	assert.Equal(t, fake.Stored("42")[0].ID, remote.ID)

	require.NoError(t, b.RefreshAll(ctx, records))
	assert.Equal(t, 4, fake.Calls("OverwriteCommands"))

	changed := global(t, "ping", "Ping, but louder")
	require.NoError(t, b.RegisterAll(ctx, []*models.Record{changed, quit}))
	assert.Equal(t, 5, fake.Calls("OverwriteCommands"))
	assert.Equal(t, "Ping, but louder", fake.Stored("")[0].Description)
}

func TestBulkUnregister(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	ping := global(t, "ping", "Ping")
	quit := guild(t, "quit", "42")

	b := NewBulk(fake, quiet())
	require.NoError(t, b.RegisterAll(ctx, []*models.Record{ping, quit}))
	require.NoError(t, b.UnregisterAll(ctx, []*models.Record{ping, quit}))

	assert.Empty(t, fake.Stored(""))
	assert.Empty(t, fake.Stored("42"))
	_, ok := b.State().Get(quit)
	assert.False(t, ok)
}

func TestBulkGuildScope(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	records := []*models.Record{global(t, "ping", "Ping"), guild(t, "quit", "42"), guild(t, "kick", "43")}

	b := NewBulk(fake, quiet())
	require.NoError(t, b.RegisterGuild(ctx, "42", records))

	assert.Equal(t, 1, fake.Calls("OverwriteCommands"))
	assert.Len(t, fake.Stored("42"), 1)
	assert.Empty(t, fake.Stored("43"))

	require.NoError(t, b.UnregisterGuild(ctx, "42", records))
	assert.Empty(t, fake.Stored("42"))
}

func oneByOne(fake *resttest.Fake, opts ...Option) *OneByOne {
	commands := cache.NewCommands(fake, cache.WithLogger(slog.New(slog.DiscardHandler)))
	return NewOneByOne(fake, commands, append([]Option{quiet()}, opts...)...)
}

func TestOneByOneIdempotent(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	ping := global(t, "ping", "Ping")
	quit := guild(t, "quit", "42")
	records := []*models.Record{ping, quit, component(t)}

	o := oneByOne(fake)
	require.NoError(t, o.RegisterAll(ctx, records))
	assert.Equal(t, 2, fake.Calls("CreateCommand"))

	mutations := fake.Mutations()
	require.NoError(t, o.RegisterAll(ctx, records))
	assert.Equal(t, mutations, fake.Mutations())

	// Unchanged passes inside the cache window reuse the fetched view.
	fetches := fake.Calls("Commands")
	require.NoError(t, o.RegisterAll(ctx, records))
	assert.Equal(t, fetches, fake.Calls("Commands"))

	changed := global(t, "ping", "Ping, but louder")
	require.NoError(t, o.RegisterAll(ctx, []*models.Record{changed, quit}))
	assert.Equal(t, 1, fake.Calls("EditCommand"))
	assert.Equal(t, 2, fake.Calls("CreateCommand"))

	remote, ok := o.State().Get(changed)
	require.True(t, ok)
	assert.Equal(t, fake.Stored("")[0].ID, remote.ID)
}

func roll(t *testing.T, lowest float64, autocomplete bool) *models.Record {
	t.Helper()
	rec, err := models.NewCommand(&dg.ApplicationCommand{
		Name:        "roll",
		Description: "Roll dice",
		Options: []*dg.ApplicationCommandOption{{
			Name:         "sides",
			Description:  "Sides",
			Type:         dg.ApplicationCommandOptionInteger,
			MinValue:     &lowest,
			Autocomplete: autocomplete,
		}},
	}).WithHandler(noop).SetGlobal().Build()
	require.NoError(t, err)
	return rec
}

func TestOneByOneEditsOptionConstraints(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	o := oneByOne(fake)

	require.NoError(t, o.RegisterAll(ctx, []*models.Record{roll(t, 1, false)}))
	require.NoError(t, o.RegisterAll(ctx, []*models.Record{roll(t, 1, false)}))
	assert.Equal(t, 0, fake.Calls("EditCommand"))

	require.NoError(t, o.RegisterAll(ctx, []*models.Record{roll(t, 4, true)}))
	assert.Equal(t, 1, fake.Calls("EditCommand"))

	stored := fake.Stored("")
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].Options[0].MinValue)
	assert.Equal(t, 4.0, *stored[0].Options[0].MinValue)
	assert.True(t, stored[0].Options[0].Autocomplete)
}

func TestBulkOverwritesOnOptionConstraints(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	hashes := &memoryHashes{hashes: make(map[string]string)}
	commands := cache.NewCommands(fake, cache.WithLogger(slog.New(slog.DiscardHandler)))
	defer commands.Close()

	b := NewBulk(fake, quiet(), WithHashStore(hashes), WithCache(commands))
	require.NoError(t, b.RegisterAll(ctx, []*models.Record{roll(t, 1, false)}))
	require.NoError(t, b.RegisterAll(ctx, []*models.Record{roll(t, 1, false)}))
	assert.Equal(t, 1, fake.Calls("OverwriteCommands"))

	require.NoError(t, b.RegisterAll(ctx, []*models.Record{roll(t, 4, true)}))
	assert.Equal(t, 2, fake.Calls("OverwriteCommands"))
}

func TestOneByOneLeavesUndeclaredCommands(t *testing.T) {
	fake := resttest.New()
	fake.Seed("", &dg.ApplicationCommand{Name: "legacy"})

	require.NoError(t, oneByOne(fake).RegisterAll(context.Background(), []*models.Record{global(t, "ping", "Ping")}))

	assert.Len(t, fake.Stored(""), 2)
	assert.Equal(t, 0, fake.Calls("DeleteCommand"))
}

func TestOneByOneErrorNamesCommand(t *testing.T) {
	fake := resttest.New()
	fake.Fail = func(method string, cmd *dg.ApplicationCommand) error {
		if method == "CreateCommand" && cmd.Name == "quit" {
			return errors.New("missing access")
		}
		return nil
	}

	err := oneByOne(fake).RegisterAll(context.Background(), []*models.Record{guild(t, "quit", "42")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"quit"`)
	assert.Contains(t, err.Error(), "missing access")
}

func TestOneByOnePermissions(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	grant := permissions.Static{
		"quit": {Users: []string{"1"}},
		"ping": {Users: []string{"1"}},
	}
	quit := guild(t, "quit", "42")
	records := []*models.Record{global(t, "ping", "Ping"), quit}

	o := oneByOne(fake, WithPermissions(grant), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	require.NoError(t, o.RegisterAll(ctx, records))
	assert.Equal(t, 1, fake.Calls("EditCommandPermissions"))

	remote, ok := o.State().Get(quit)
	require.True(t, ok)
	perms := fake.Permissions("42", remote.ID)
	require.Len(t, perms, 1)
	assert.Equal(t, dg.ApplicationCommandPermissionTypeUser, perms[0].Type)

	require.NoError(t, o.RegisterAll(ctx, records))
	assert.Equal(t, 1, fake.Calls("EditCommandPermissions"))
}

func TestOneByOneUnregister(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	ping := global(t, "ping", "Ping")
	quit := guild(t, "quit", "42")

	o := oneByOne(fake)
	require.NoError(t, o.RegisterAll(ctx, []*models.Record{ping, quit}))
	require.NoError(t, o.UnregisterAll(ctx, []*models.Record{ping, quit}))

	assert.Equal(t, 2, fake.Calls("DeleteCommand"))
	assert.Empty(t, fake.Stored(""))
	assert.Empty(t, fake.Stored("42"))

	// Unknown to the state but present remotely.
	fake.Seed("", &dg.ApplicationCommand{Name: "ping", Description: "Ping"})
	require.NoError(t, oneByOne(fake).UnregisterAll(ctx, []*models.Record{ping}))
	assert.Empty(t, fake.Stored(""))
}

func TestOneByOneRefreshGuild(t *testing.T) {
	ctx := context.Background()
	fake := resttest.New()
	records := []*models.Record{guild(t, "quit", "42"), guild(t, "kick", "43")}

	o := oneByOne(fake)
	require.NoError(t, o.RefreshGuild(ctx, "43", records))

	assert.Empty(t, fake.Stored("42"))
	assert.Len(t, fake.Stored("43"), 1)
}

func TestSamePermissions(t *testing.T) {
	role := func(id string, allow bool) *dg.ApplicationCommandPermissions {
		return &dg.ApplicationCommandPermissions{ID: id, Type: dg.ApplicationCommandPermissionTypeRole, Permission: allow}
	}
	user := func(id string) *dg.ApplicationCommandPermissions {
		return &dg.ApplicationCommandPermissions{ID: id, Type: dg.ApplicationCommandPermissionTypeUser, Permission: true}
	}

	testCases := []struct {
		description string
		a, b        []*dg.ApplicationCommandPermissions
		want        bool
	}{
		{description: "both empty", want: true},
		{description: "order ignored", a: []*dg.ApplicationCommandPermissions{role("1", true), user("2")}, b: []*dg.ApplicationCommandPermissions{user("2"), role("1", true)}, want: true},
		{description: "allow differs", a: []*dg.ApplicationCommandPermissions{role("1", true)}, b: []*dg.ApplicationCommandPermissions{role("1", false)}},
		{description: "type differs", a: []*dg.ApplicationCommandPermissions{role("1", true)}, b: []*dg.ApplicationCommandPermissions{user("1")}},
		{description: "extra entry", a: []*dg.ApplicationCommandPermissions{role("1", true)}, b: []*dg.ApplicationCommandPermissions{role("1", true), user("2")}},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.want, SamePermissions(tc.a, tc.b))
		})
	}
}
