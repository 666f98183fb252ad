package response

import (
	"context"
	"fmt"
	"log/slog"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
)

// Session is the part of *discordgo.Session the responder uses.
type Session interface {
	InteractionRespond(i *dg.Interaction, resp *dg.InteractionResponse, options ...dg.RequestOption) error
	FollowupMessageCreate(i *dg.Interaction, wait bool, data *dg.WebhookParams, options ...dg.RequestOption) (*dg.Message, error)
	FollowupMessageEdit(i *dg.Interaction, messageID string, data *dg.WebhookEdit, options ...dg.RequestOption) (*dg.Message, error)
	FollowupMessageDelete(i *dg.Interaction, messageID string, options ...dg.RequestOption) error
}

type MessageOptions struct {
	Content    string
	Embeds     []*dg.MessageEmbed
	Files      []*dg.File
	Components []dg.MessageComponent
	Ephemeral  bool
	Update     bool
	MessageID  string
}

type Responder struct {
	s Session
	l *slog.Logger
}

func NewSessionResponder(s Session, l *slog.Logger) *Responder {
	return &Responder{s: s, l: l}
}

// Defer acknowledges the interaction so a followup can be sent later.
func (r *Responder) Defer(ctx context.Context, i *dg.Interaction, ephemeral bool) error {
	resp := &dg.InteractionResponse{Type: dg.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &dg.InteractionResponseData{Flags: dg.MessageFlagsEphemeral}
	}

	if err := r.s.InteractionRespond(i, resp, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Respond answers the interaction with a plain message.
func (r *Responder) Respond(ctx context.Context, i *dg.Interaction, content string, ephemeral bool) error {
	data := &dg.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = dg.MessageFlagsEphemeral
	}

	if err := r.s.InteractionRespond(i, &dg.InteractionResponse{
		Type: dg.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Send posts a followup, or edits one when Update and MessageID are set.
func (r *Responder) Send(ctx context.Context, i *dg.Interaction, opts MessageOptions) (*dg.Message, error) {
	if opts.Update && opts.MessageID != "" {
		return r.Edit(ctx, i, opts)
	}

	params := &dg.WebhookParams{
		Content:    opts.Content,
		Embeds:     opts.Embeds,
		Files:      opts.Files,
		Components: opts.Components,
	}
	if opts.Ephemeral {
		params.Flags = dg.MessageFlagsEphemeral
	}

	msg, err := r.s.FollowupMessageCreate(i, true, params, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}
	return msg, nil
}

func (r *Responder) Edit(ctx context.Context, i *dg.Interaction, opts MessageOptions) (*dg.Message, error) {
	if opts.MessageID == "" {
		return nil, fmt.Errorf("message ID required for edit")
	}

	msg, err := r.s.FollowupMessageEdit(i, opts.MessageID, &dg.WebhookEdit{
		Content:    &opts.Content,
		Embeds:     &opts.Embeds,
		Components: &opts.Components,
	}, dg.WithContext(ctx))
	if err != nil {
		return nil, errutil.With(err)
	}
	return msg, nil
}

func (r *Responder) Delete(ctx context.Context, i *dg.Interaction, messageID string) error {
	if err := r.s.FollowupMessageDelete(i, messageID, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Fail renders a failure as an ephemeral embed followup.
func (r *Responder) Fail(ctx context.Context, i *dg.Interaction, f utils.Failure) error {
	r.l.Warn("handler failure", "type", f.Type, "message", f.Message, "data", f.Data)

	embed := failureEmbed(f)
	if _, err := r.s.FollowupMessageCreate(i, true, &dg.WebhookParams{
		Embeds: []*dg.MessageEmbed{embed},
		Flags:  dg.MessageFlagsEphemeral,
	}, dg.WithContext(ctx)); err != nil {
		return errutil.With(err)
	}
	return nil
}

func failureEmbed(f utils.Failure) *dg.MessageEmbed {
	var title, description string
	var color int

	switch f.Type {
	case utils.ErrInternal:
		detail, ok := f.Data["error"]
		if !ok {
			detail = "An unexpected error occurred."
		}

		str, ok := detail.(string)
		if !ok {
			str = fmt.Sprintf("%v", detail)
		}

		title = "Something Went Wrong"
		description = fmt.Sprintf("%s\n\nError Details:\n```%s```", f.Message, str)
		color = 0xFF0000

	case utils.ErrBadInput:
		title = "Invalid Input"
		description = fmt.Sprintf("%s\n\nDouble-check your input and try again.", f.Message)
		color = 0xFFA500

	case utils.ErrNotAllowed:
		title = "Permission Denied"
		description = fmt.Sprintf("%s\n\nIf this doesn't seem right, let an admin know.", f.Message)
		color = 0xFF0000

	case utils.ErrNotFound:
		title = "Not Found"
		description = f.Message
		color = 0xFFA500

	case utils.ErrTooLarge:
		title = "Response Too Large"
		description = "The output exceeds Discord's message size limit. Try narrowing down your request."
		color = 0xFFEF00
	}

	return &dg.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}
}
