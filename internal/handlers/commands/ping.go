package commands

import (
	"context"
	"fmt"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/handlers"
	"github.com/glotchimo/herald/internal/models"
	rp "github.com/glotchimo/herald/internal/response"
	"github.com/graxinc/errutil"
)

type Ping struct{}

func (p *Ping) Metadata() *dg.ApplicationCommand {
	return &dg.ApplicationCommand{
		Name:        "ping",
		Description: "Ping the backend",
	}
}

func (p *Ping) Setup(_ context.Context, dep handlers.Dependencies) error {
	rec, err := models.NewCommand(p.Metadata()).
		WithHandler(func(ctx context.Context, i *dg.Interaction) error {
			return p.handle(ctx, dep, i)
		}).
		SetGlobal().
		Build()
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

func (p *Ping) handle(ctx context.Context, dep handlers.Dependencies, i *dg.Interaction) error {
	latency := "unknown"
	if dep.Latency != nil {
		latency = dep.Latency().String()
	}

	embed := dg.MessageEmbed{
		Title:       "Pong!",
		Description: fmt.Sprintf("Latency: %s", latency),
	}

	_, err := dep.Responder.Send(ctx, i, rp.MessageOptions{Embeds: []*dg.MessageEmbed{&embed}, Ephemeral: true})
	return err
}
