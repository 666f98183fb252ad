package utils

import (
	"fmt"
	"strings"

	dg "github.com/bwmarrin/discordgo"
)

// InteractionName is a short label for logs: "/name" for commands and
// "component:<custom id>" for message components.
func InteractionName(i *dg.Interaction) string {
	if i == nil {
		return ""
	}

	switch i.Type {
	case dg.InteractionApplicationCommand, dg.InteractionApplicationCommandAutocomplete:
		return "/" + i.ApplicationCommandData().Name
	case dg.InteractionMessageComponent:
		return "component:" + i.MessageComponentData().CustomID
	case dg.InteractionModalSubmit:
		return "modal:" + i.ModalSubmitData().CustomID
	}

	return i.Type.String()
}

// InteractionUserID returns the id of the invoking user in guilds and DMs.
func InteractionUserID(i *dg.Interaction) string {
	if u := interactionUser(i); u != nil {
		return u.ID
	}
	return ""
}

func InteractionUser(i *dg.Interaction) string {
	u := interactionUser(i)
	if u == nil {
		return ""
	}
	return fmt.Sprintf("%s (%s)", u.Username, u.ID)
}

func interactionUser(i *dg.Interaction) *dg.User {
	switch {
	case i == nil:
		return nil
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User
	default:
		return i.User
	}
}

// FormatInteraction renders a command invocation with its options, e.g.
// "/remind when:10m note:tea". Other interactions use InteractionName.
func FormatInteraction(i *dg.Interaction) string {
	if i == nil || i.Type != dg.InteractionApplicationCommand {
		return InteractionName(i)
	}

	data := i.ApplicationCommandData()
	parts := []string{"/" + data.Name}

	for _, opt := range data.Options {
		parts = append(parts, formatCommandOption(opt))
	}

	return strings.Join(parts, " ")
}

func formatCommandValue(opt *dg.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case dg.ApplicationCommandOptionInteger:
		return fmt.Sprintf("%d", opt.IntValue())
	case dg.ApplicationCommandOptionBoolean:
		return fmt.Sprintf("%t", opt.BoolValue())
	case dg.ApplicationCommandOptionNumber:
		return fmt.Sprintf("%.2f", opt.FloatValue())
	default:
		return fmt.Sprintf("%v", opt.Value)
	}
}

func formatCommandOption(opt *dg.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case dg.ApplicationCommandOptionSubCommand, dg.ApplicationCommandOptionSubCommandGroup:
		subParts := []string{opt.Name}
		for _, subOpt := range opt.Options {
			subParts = append(subParts, formatCommandOption(subOpt))
		}
		return strings.Join(subParts, " ")
	default:
		return fmt.Sprintf("%s:%s", opt.Name, formatCommandValue(opt))
	}
}
