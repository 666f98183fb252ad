// Package resttest provides an in-memory rest.Client for tests.
package resttest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	dg "github.com/bwmarrin/discordgo"
)

const AppID = "app"

// Fake stores commands per scope, the empty guild id being global. Calls
// counts every method invocation by name.
type Fake struct {
	mu     sync.Mutex
	nextID int

	commands map[string][]*dg.ApplicationCommand
	perms    map[string][]*dg.ApplicationCommandPermissions
	calls    map[string]int

	// Fail, when set, is consulted before every call and its error returned.
	Fail func(method string, cmd *dg.ApplicationCommand) error
}

func New() *Fake {
	return &Fake{
		commands: make(map[string][]*dg.ApplicationCommand),
		perms:    make(map[string][]*dg.ApplicationCommandPermissions),
		calls:    make(map[string]int),
	}
}

// Seed stores cmd as if another client created it. An empty ApplicationID
// is filled with AppID.
func (f *Fake) Seed(guildID string, cmd *dg.ApplicationCommand) *dg.ApplicationCommand {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.store(guildID, cmd)
}

// Calls returns how often method was called.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

// Mutations sums the calls that change remote state.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, m := range []string{"CreateCommand", "EditCommand", "DeleteCommand", "OverwriteCommands", "EditCommandPermissions", "BatchEditPermissions"} {
		n += f.calls[m]
	}
	return n
}

// Stored returns a copy of the commands in a scope.
func (f *Fake) Stored(guildID string) []*dg.ApplicationCommand {
	f.mu.Lock()
	defer f.mu.Unlock()

	return clone(f.commands[guildID])
}

// Permissions returns the overwrites stored for a command.
func (f *Fake) Permissions(guildID, cmdID string) []*dg.ApplicationCommandPermissions {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.perms[guildID+"/"+cmdID])
}

func (f *Fake) ApplicationID(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls["ApplicationID"]++
	return AppID, nil
}

func (f *Fake) Commands(_ context.Context, guildID string) ([]*dg.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("Commands", nil); err != nil {
		return nil, err
	}
	return clone(f.commands[guildID]), nil
}

func (f *Fake) CreateCommand(_ context.Context, guildID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("CreateCommand", cmd); err != nil {
		return nil, err
	}

	c := *cmd
	c.ID = ""
	c.ApplicationID = ""
	return f.store(guildID, &c), nil
}

func (f *Fake) EditCommand(_ context.Context, guildID, cmdID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("EditCommand", cmd); err != nil {
		return nil, err
	}

	for n, existing := range f.commands[guildID] {
		if existing.ID == cmdID {
			c := *cmd
			c.ID = cmdID
			c.ApplicationID = existing.ApplicationID
			c.GuildID = guildID
			f.commands[guildID][n] = &c
			cp := c
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("unknown command %s", cmdID)
}

func (f *Fake) DeleteCommand(_ context.Context, guildID, cmdID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("DeleteCommand", nil); err != nil {
		return err
	}

	f.commands[guildID] = slices.DeleteFunc(f.commands[guildID], func(c *dg.ApplicationCommand) bool {
		return c.ID == cmdID
	})
	return nil
}

// OverwriteCommands keeps the ids of commands whose names survive, like
// Discord does.
func (f *Fake) OverwriteCommands(_ context.Context, guildID string, cmds []*dg.ApplicationCommand) ([]*dg.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("OverwriteCommands", nil); err != nil {
		return nil, err
	}

	ids := make(map[string]string)
	for _, c := range f.commands[guildID] {
		if c.ApplicationID == AppID {
			ids[c.Name] = c.ID
		}
	}

	f.commands[guildID] = slices.DeleteFunc(f.commands[guildID], func(c *dg.ApplicationCommand) bool {
		return c.ApplicationID == AppID
	})

	result := make([]*dg.ApplicationCommand, 0, len(cmds))
	for _, cmd := range cmds {
		c := *cmd
		c.ID = ids[cmd.Name]
		c.ApplicationID = ""
		result = append(result, f.store(guildID, &c))
	}

	return result, nil
}

func (f *Fake) CommandPermissions(_ context.Context, guildID, cmdID string) ([]*dg.ApplicationCommandPermissions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("CommandPermissions", nil); err != nil {
		return nil, err
	}
	return slices.Clone(f.perms[guildID+"/"+cmdID]), nil
}

func (f *Fake) EditCommandPermissions(_ context.Context, guildID, cmdID string, perms []*dg.ApplicationCommandPermissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("EditCommandPermissions", nil); err != nil {
		return err
	}

	f.perms[guildID+"/"+cmdID] = slices.Clone(perms)
	return nil
}

func (f *Fake) BatchEditPermissions(_ context.Context, guildID string, perms []*dg.GuildApplicationCommandPermissions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.call("BatchEditPermissions", nil); err != nil {
		return err
	}

	for _, p := range perms {
		f.perms[guildID+"/"+p.ID] = slices.Clone(p.Permissions)
	}
	return nil
}

func (f *Fake) call(method string, cmd *dg.ApplicationCommand) error {
	f.calls[method]++
	if f.Fail != nil {
		return f.Fail(method, cmd)
	}
	return nil
}

func (f *Fake) store(guildID string, cmd *dg.ApplicationCommand) *dg.ApplicationCommand {
	c := *cmd
	if c.ID == "" {
		f.nextID++
		c.ID = fmt.Sprintf("%d", f.nextID)
	}
	if c.ApplicationID == "" {
		c.ApplicationID = AppID
	}
	c.GuildID = guildID

	f.commands[guildID] = append(f.commands[guildID], &c)
	cp := c
	return &cp
}

func clone(cmds []*dg.ApplicationCommand) []*dg.ApplicationCommand {
	out := make([]*dg.ApplicationCommand, 0, len(cmds))
	for _, c := range cmds {
		cp := *c
		out = append(out, &cp)
	}
	return out
}
