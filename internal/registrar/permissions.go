package registrar

import (
	"context"
	"fmt"
	"maps"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/rest"
	"github.com/graxinc/errutil"
)

type permissionKey struct {
	id    string
	typ   dg.ApplicationCommandPermissionType
	allow bool
}

func permissionSet(perms []*dg.ApplicationCommandPermissions) map[permissionKey]struct{} {
	set := make(map[permissionKey]struct{}, len(perms))
	for _, p := range perms {
		set[permissionKey{id: p.ID, typ: p.Type, allow: p.Permission}] = struct{}{}
	}
	return set
}

// SamePermissions compares overwrites as sets, ignoring order and duplicates.
func SamePermissions(a, b []*dg.ApplicationCommandPermissions) bool {
	return maps.Equal(permissionSet(a), permissionSet(b))
}

// pendingPermissions returns the overwrites rec should get in guildID, or
// nil when they already match or none are wanted.
func (o *options) pendingPermissions(ctx context.Context, client rest.Client, guildID, cmdID string, rec *models.Record) ([]*dg.ApplicationCommandPermissions, error) {
	want, err := o.resolver.CommandPermissions(ctx, rec)
	if err != nil {
		return nil, errutil.With(err)
	}
	if len(want) == 0 {
		return nil, nil
	}

	have, err := client.CommandPermissions(ctx, guildID, cmdID)
	if err != nil {
		return nil, fmt.Errorf("reading permissions of command %q: %w", rec.Name(), err)
	}
	if SamePermissions(have, want) {
		return nil, nil
	}

	return want, nil
}
