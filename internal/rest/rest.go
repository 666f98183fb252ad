// Package rest is the slice of the Discord REST API the registrar and cache
// talk to.
package rest

import (
	"context"
	"errors"
	"net/http"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/graxinc/errutil"
)

// Client lists, mutates and permissions application commands. An empty
// guild id addresses the global scope.
type Client interface {
	ApplicationID(ctx context.Context) (string, error)

	Commands(ctx context.Context, guildID string) ([]*dg.ApplicationCommand, error)
	CreateCommand(ctx context.Context, guildID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error)
	EditCommand(ctx context.Context, guildID, cmdID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error)
	DeleteCommand(ctx context.Context, guildID, cmdID string) error
	OverwriteCommands(ctx context.Context, guildID string, cmds []*dg.ApplicationCommand) ([]*dg.ApplicationCommand, error)

	CommandPermissions(ctx context.Context, guildID, cmdID string) ([]*dg.ApplicationCommandPermissions, error)
	EditCommandPermissions(ctx context.Context, guildID, cmdID string, perms []*dg.ApplicationCommandPermissions) error
	BatchEditPermissions(ctx context.Context, guildID string, perms []*dg.GuildApplicationCommandPermissions) error
}

// Session implements Client on top of a discordgo session.
type Session struct {
	s *dg.Session

	mu    sync.Mutex
	appID string
}

func NewSession(s *dg.Session) *Session {
	return &Session{s: s}
}

// ApplicationID returns the bot user id once the gateway is ready, falling
// back to the application endpoint.
func (s *Session) ApplicationID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appID != "" {
		return s.appID, nil
	}

	if s.s.State != nil && s.s.State.User != nil && s.s.State.User.ID != "" {
		s.appID = s.s.State.User.ID
		return s.appID, nil
	}

	// Application takes no request options, so this lookup ignores ctx.
	app, err := s.s.Application("@me")
	if err != nil {
		return "", errutil.With(err)
	}
	s.appID = app.ID

	return s.appID, nil
}

func (s *Session) Commands(ctx context.Context, guildID string) ([]*dg.ApplicationCommand, error) {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	cmds, err := s.s.ApplicationCommands(appID, guildID, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}

	return cmds, nil
}

func (s *Session) CreateCommand(ctx context.Context, guildID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error) {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.s.ApplicationCommandCreate(appID, guildID, cmd, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}

	return created, nil
}

func (s *Session) EditCommand(ctx context.Context, guildID, cmdID string, cmd *dg.ApplicationCommand) (*dg.ApplicationCommand, error) {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	edited, err := s.s.ApplicationCommandEdit(appID, guildID, cmdID, cmd, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}

	return edited, nil
}

func (s *Session) DeleteCommand(ctx context.Context, guildID, cmdID string) error {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return err
	}

	if err := s.s.ApplicationCommandDelete(appID, guildID, cmdID, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Session) OverwriteCommands(ctx context.Context, guildID string, cmds []*dg.ApplicationCommand) ([]*dg.ApplicationCommand, error) {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	if cmds == nil {
		cmds = []*dg.ApplicationCommand{}
	}

	result, err := s.s.ApplicationCommandBulkOverwrite(appID, guildID, cmds, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}

	return result, nil
}

// CommandPermissions returns nil when the command has no overwrites, which
// Discord reports as a 404.
func (s *Session) CommandPermissions(ctx context.Context, guildID, cmdID string) ([]*dg.ApplicationCommandPermissions, error) {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	perms, err := s.s.ApplicationCommandPermissions(appID, guildID, cmdID, dg.WithContext(ctx))
	if err != nil {
		if NotFound(err) {
			return nil, nil
		}
		return nil, errutil.With(err)
	}

	return perms.Permissions, nil
}

func (s *Session) EditCommandPermissions(ctx context.Context, guildID, cmdID string, perms []*dg.ApplicationCommandPermissions) error {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return err
	}

	list := &dg.ApplicationCommandPermissionsList{Permissions: perms}
	if err := s.s.ApplicationCommandPermissionsEdit(appID, guildID, cmdID, list, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (s *Session) BatchEditPermissions(ctx context.Context, guildID string, perms []*dg.GuildApplicationCommandPermissions) error {
	appID, err := s.ApplicationID(ctx)
	if err != nil {
		return err
	}

	if err := s.s.ApplicationCommandPermissionsBatchEdit(appID, guildID, perms, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}

	return nil
}

// NotFound reports whether err is a Discord 404.
func NotFound(err error) bool {
	var restErr *dg.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}
