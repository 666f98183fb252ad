package utils

import (
	"errors"
	"strings"
	"testing"

	dg "github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestValidateCommand(t *testing.T) {
	cmd := &dg.ApplicationCommand{
		Name:        "Ping",
		Description: strings.Repeat("d", 150),
		Options: []*dg.ApplicationCommandOption{
			{Name: strings.Repeat("o", 40), Description: "ok"},
		},
	}

	result := ValidateCommand(cmd)

	assert.True(t, result.WasModified)
	assert.Equal(t, "ping", result.Command.Name)
	assert.Len(t, result.Command.Description, maxCommandDescriptionLength)
	assert.Len(t, result.Command.Options[0].Name, maxOptionNameLength)
	assert.Len(t, result.Errors, 3)

	assert.Equal(t, "Ping", cmd.Name)
	assert.Len(t, cmd.Options[0].Name, 40)
}

func TestValidateCommandUnchanged(t *testing.T) {
	result := ValidateCommand(&dg.ApplicationCommand{Name: "ping", Description: "Ping the backend"})

	assert.False(t, result.WasModified)
	assert.Empty(t, result.Errors)
}

func TestHashCommands(t *testing.T) {
	a := &dg.ApplicationCommand{Name: "a", Description: "first"}
	b := &dg.ApplicationCommand{Name: "b", Description: "second"}

	assert.Equal(t, HashCommands([]*dg.ApplicationCommand{a, b}), HashCommands([]*dg.ApplicationCommand{b, a}))

	remote := &dg.ApplicationCommand{ID: "123", ApplicationID: "app", Version: "9", Name: "a", Description: "first", Type: dg.ChatApplicationCommand}
	assert.True(t, SameCommand(a, remote))

	changed := &dg.ApplicationCommand{Name: "a", Description: "changed"}
	assert.False(t, SameCommand(a, changed))
}

func TestSameCommandShape(t *testing.T) {
	one, four := 1.0, 4.0
	short := 2
	yes := true
	guildOnly := []dg.InteractionContextType{dg.InteractionContextGuild}
	german := map[dg.Locale]string{dg.German: "wuerfeln"}

	roll := func(edit func(*dg.ApplicationCommand)) *dg.ApplicationCommand {
		cmd := &dg.ApplicationCommand{
			Name:        "roll",
			Description: "Roll dice",
			Options: []*dg.ApplicationCommandOption{
				{Name: "sides", Description: "Sides", Type: dg.ApplicationCommandOptionInteger, MinValue: &one},
				{Name: "label", Description: "Label", Type: dg.ApplicationCommandOptionString},
			},
		}
		if edit != nil {
			edit(cmd)
		}
		return cmd
	}

	testCases := []struct {
		description string
		declared    *dg.ApplicationCommand
		same        bool
	}{
		{description: "unchanged", declared: roll(nil), same: true},
		{description: "min value", declared: roll(func(c *dg.ApplicationCommand) { c.Options[0].MinValue = &four })},
		{description: "max value", declared: roll(func(c *dg.ApplicationCommand) { c.Options[0].MaxValue = 20 })},
		{description: "autocomplete", declared: roll(func(c *dg.ApplicationCommand) { c.Options[1].Autocomplete = true })},
		{description: "min length", declared: roll(func(c *dg.ApplicationCommand) { c.Options[1].MinLength = &short })},
		{description: "max length", declared: roll(func(c *dg.ApplicationCommand) { c.Options[1].MaxLength = 10 })},
		{description: "channel types", declared: roll(func(c *dg.ApplicationCommand) {
			c.Options[1].ChannelTypes = []dg.ChannelType{dg.ChannelTypeGuildText}
		})},
		{description: "option order", declared: roll(func(c *dg.ApplicationCommand) {
			c.Options[0], c.Options[1] = c.Options[1], c.Options[0]
		})},
		{description: "nsfw", declared: roll(func(c *dg.ApplicationCommand) { c.NSFW = &yes })},
		{description: "contexts", declared: roll(func(c *dg.ApplicationCommand) { c.Contexts = &guildOnly })},
		{description: "name localizations", declared: roll(func(c *dg.ApplicationCommand) { c.NameLocalizations = &german })},
		{description: "option localizations", declared: roll(func(c *dg.ApplicationCommand) {
			c.Options[0].DescriptionLocalizations = german
		})},
	}

	remote := roll(func(c *dg.ApplicationCommand) {
		c.ID = "1"
		c.Version = "2"
		integrations := []dg.ApplicationIntegrationType{dg.ApplicationIntegrationGuildInstall}
		c.IntegrationTypes = &integrations
	})

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.same, SameCommand(remote, tc.declared))
		})
	}
}

func TestInteractionName(t *testing.T) {
	testCases := []struct {
		description string
		interaction *dg.Interaction
		want        string
	}{
		{
			description: "command",
			interaction: &dg.Interaction{
				Type: dg.InteractionApplicationCommand,
				Data: dg.ApplicationCommandInteractionData{Name: "ping"},
			},
			want: "/ping",
		},
		{
			description: "component",
			interaction: &dg.Interaction{
				Type: dg.InteractionMessageComponent,
				Data: dg.MessageComponentInteractionData{CustomID: "yes"},
			},
			want: "component:yes",
		},
		{
			description: "nil",
			want:        "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.want, InteractionName(tc.interaction))
		})
	}
}

func TestInteractionUserID(t *testing.T) {
	assert.Equal(t, "1", InteractionUserID(&dg.Interaction{Member: &dg.Member{User: &dg.User{ID: "1"}}}))
	assert.Equal(t, "2", InteractionUserID(&dg.Interaction{User: &dg.User{ID: "2"}}))
	assert.Empty(t, InteractionUserID(&dg.Interaction{}))
}

func TestFormatInteraction(t *testing.T) {
	i := &dg.Interaction{
		Type: dg.InteractionApplicationCommand,
		Data: dg.ApplicationCommandInteractionData{
			Name: "remind",
			Options: []*dg.ApplicationCommandInteractionDataOption{
				{
					Name: "add",
					Type: dg.ApplicationCommandOptionSubCommand,
					Options: []*dg.ApplicationCommandInteractionDataOption{
						{Name: "minutes", Type: dg.ApplicationCommandOptionInteger, Value: float64(10)},
						{Name: "note", Type: dg.ApplicationCommandOptionString, Value: "tea"},
						{Name: "loud", Type: dg.ApplicationCommandOptionBoolean, Value: true},
					},
				},
			},
		},
	}

	assert.Equal(t, "/remind add minutes:10 note:tea loud:true", FormatInteraction(i))

	component := &dg.Interaction{
		Type: dg.InteractionMessageComponent,
		Data: dg.MessageComponentInteractionData{CustomID: "yes"},
	}
	assert.Equal(t, "component:yes", FormatInteraction(component))
	assert.Equal(t, "", FormatInteraction(nil))
}

func TestAsFailure(t *testing.T) {
	f, ok := AsFailure(errors.Join(errors.New("lookup"), Failure{Type: ErrNotFound, Message: "missing"}))
	assert.True(t, ok)
	assert.Equal(t, "missing", f.Message)
	assert.Equal(t, "not_found", f.Type.String())

	_, ok = AsFailure(errors.New("plain"))
	assert.False(t, ok)
}
