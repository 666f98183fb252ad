package matcher

import (
	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/holder"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
)

// Command matches application command invocations by command name.
type Command struct{}

func (Command) Matches(i *dg.Interaction, rec *models.Record) bool {
	if i.Type != dg.InteractionApplicationCommand || rec.Kind() != models.KindCommand {
		return false
	}

	return i.ApplicationCommandData().Name == rec.Name()
}

// Component matches message component interactions. Every constraint set on
// the record must agree with the event; unset constraints match anything.
type Component struct{}

func (Component) Matches(i *dg.Interaction, rec *models.Record) bool {
	if i.Type != dg.InteractionMessageComponent || rec.Kind() != models.KindComponent {
		return false
	}

	if id := rec.MessageID(); id != "" && (i.Message == nil || i.Message.ID != id) {
		return false
	}
	if id := rec.CustomID(); id != "" && i.MessageComponentData().CustomID != id {
		return false
	}
	if id := rec.UserID(); id != "" && utils.InteractionUserID(i) != id {
		return false
	}

	return true
}

// Default returns the built-in matchers, most specific first.
func Default() []holder.Matcher {
	return []holder.Matcher{Component{}, Command{}}
}
