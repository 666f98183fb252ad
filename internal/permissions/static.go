package permissions

import (
	"context"
	"slices"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
)

// Grant lists the roles and users allowed to use one interaction.
type Grant struct {
	Roles []string
	Users []string
}

// Static resolves permissions from a fixed table keyed by interaction name.
// Names missing from the table are open to everyone.
type Static map[string]Grant

// OrEveryone returns s, or Everyone when no entry restricts anything.
func (s Static) OrEveryone() Resolver {
	for _, g := range s {
		if len(g.Roles) > 0 || len(g.Users) > 0 {
			return s
		}
	}
	return Everyone{}
}

func (s Static) IsForEveryone(_ context.Context, rec *models.Record) (bool, error) {
	g, ok := s[rec.Name()]
	return !ok || (len(g.Roles) == 0 && len(g.Users) == 0), nil
}

func (s Static) HasPermission(ctx context.Context, i *dg.Interaction, rec *models.Record) (bool, error) {
	if open, _ := s.IsForEveryone(ctx, rec); open {
		return true, nil
	}

	g := s[rec.Name()]

	var userID string
	var roles []string
	switch {
	case i.Member != nil && i.Member.User != nil:
		userID = i.Member.User.ID
		roles = i.Member.Roles
	case i.User != nil:
		userID = i.User.ID
	}

	if userID != "" && slices.Contains(g.Users, userID) {
		return true, nil
	}

	for _, role := range roles {
		if slices.Contains(g.Roles, role) {
			return true, nil
		}
	}

	return false, nil
}

func (s Static) CommandPermissions(_ context.Context, rec *models.Record) ([]*dg.ApplicationCommandPermissions, error) {
	g, ok := s[rec.Name()]
	if !ok {
		return nil, nil
	}

	perms := make([]*dg.ApplicationCommandPermissions, 0, len(g.Roles)+len(g.Users))
	for _, id := range g.Roles {
		perms = append(perms, &dg.ApplicationCommandPermissions{
			ID:         id,
			Type:       dg.ApplicationCommandPermissionTypeRole,
			Permission: true,
		})
	}
	for _, id := range g.Users {
		perms = append(perms, &dg.ApplicationCommandPermissions{
			ID:         id,
			Type:       dg.ApplicationCommandPermissionTypeUser,
			Permission: true,
		})
	}

	return perms, nil
}
