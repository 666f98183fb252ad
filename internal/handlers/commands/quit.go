package commands

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/components"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/handlers"
	"github.com/glotchimo/herald/internal/models"
	rp "github.com/glotchimo/herald/internal/response"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
)

// Quit is a guild command that asks for confirmation before shutting the
// bot down. Only the invoking user can answer, and only once.
type Quit struct{}

func (q *Quit) Metadata() *dg.ApplicationCommand {
	return &dg.ApplicationCommand{
		Name:        "quit",
		Description: "Shut the bot down",
	}
}

func (q *Quit) Setup(_ context.Context, dep handlers.Dependencies) error {
	b := models.NewCommand(q.Metadata()).
		WithHandler(func(ctx context.Context, i *dg.Interaction) error {
			return q.prompt(ctx, dep, i)
		})
	if dep.GuildID != "" {
		b.WithGuild(dep.GuildID)
	}

	rec, err := b.Build()
	if err != nil {
		return errutil.With(err)
	}

	exec, err := dep.Executors().Build()
	if err != nil {
		return errutil.With(err)
	}

	dep.Holder.Add(rec, exec)
	return nil
}

func (q *Quit) prompt(ctx context.Context, dep handlers.Dependencies, i *dg.Interaction) error {
	yes := components.NewCustomID("quit-yes")
	no := components.NewCustomID("quit-no")

	msg, err := dep.Responder.Send(ctx, i, rp.MessageOptions{
		Content:   "Shut the bot down?",
		Ephemeral: true,
		Components: []dg.MessageComponent{
			dg.ActionsRow{Components: []dg.MessageComponent{
				dg.Button{Label: "Yes", Style: dg.DangerButton, CustomID: yes},
				dg.Button{Label: "No", Style: dg.SecondaryButton, CustomID: no},
			}},
		},
	})
	if err != nil {
		return err
	}

	_, err = dep.Components.ForMessageChoice(msg.ID, utils.InteractionUserID(i),
		func(b *executor.Builder) { b.OnlyOnce(dep.Holder) },
		components.Choice{CustomID: yes, Handler: func(ctx context.Context, i *dg.Interaction) error {
			if dep.Quit == nil {
				return utils.Failure{Type: utils.ErrNotAllowed, Message: "Shutdown is disabled."}
			}
			if _, err := dep.Responder.Send(ctx, i, rp.MessageOptions{Content: "Shutting down.", Ephemeral: true}); err != nil {
				return err
			}
			dep.Logger.Info("shutdown requested", "user", utils.InteractionUser(i))
			dep.Quit()
			return nil
		}},
		components.Choice{CustomID: no, Handler: func(ctx context.Context, i *dg.Interaction) error {
			_, err := dep.Responder.Send(ctx, i, rp.MessageOptions{Content: "Staying online.", Ephemeral: true})
			return err
		}},
	)
	return err
}
