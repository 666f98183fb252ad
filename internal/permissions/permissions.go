package permissions

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
)

// Resolver decides who may use a declared interaction and which permission
// overwrites a registered command should carry.
type Resolver interface {
	// IsForEveryone reports whether the command is usable by default.
	IsForEveryone(ctx context.Context, rec *models.Record) (bool, error)
	// HasPermission reports whether the invoking user may run the interaction.
	HasPermission(ctx context.Context, i *dg.Interaction, rec *models.Record) (bool, error)
	// CommandPermissions returns the overwrites a guild command should have.
	CommandPermissions(ctx context.Context, rec *models.Record) ([]*dg.ApplicationCommandPermissions, error)
}

// Everyone allows every user and sets no overwrites.
type Everyone struct{}

func (Everyone) IsForEveryone(context.Context, *models.Record) (bool, error) {
	return true, nil
}

func (Everyone) HasPermission(context.Context, *dg.Interaction, *models.Record) (bool, error) {
	return true, nil
}

func (Everyone) CommandPermissions(context.Context, *models.Record) ([]*dg.ApplicationCommandPermissions, error) {
	return nil, nil
}
