package models

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
)

type Kind int

const (
	KindCommand Kind = iota
	KindComponent
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindComponent:
		return "component"
	}
	return "unknown"
}

// Handler handles a matched interaction.
type Handler func(ctx context.Context, i *dg.Interaction) error

// InstancedHandler handles a matched interaction using an instance built
// fresh for every invocation.
type InstancedHandler func(ctx context.Context, instance any, i *dg.Interaction) error

// Record is one declared interaction. It is immutable once built; remote
// registration state is tracked by the registrar.
type Record struct {
	kind Kind

	command *dg.ApplicationCommand
	global  bool
	guildID string

	messageID string
	customID  string
	userID    string

	handler   Handler
	instanced InstancedHandler
}

func (r *Record) Kind() Kind {
	return r.kind
}

// Command returns a copy of the built command, or nil for components.
func (r *Record) Command() *dg.ApplicationCommand {
	if r.command == nil {
		return nil
	}

	cmd := *r.command
	if r.command.Options != nil {
		cmd.Options = append([]*dg.ApplicationCommandOption(nil), r.command.Options...)
	}
	return &cmd
}

// Name returns the command name for commands and the custom id for components.
func (r *Record) Name() string {
	if r.command != nil {
		return r.command.Name
	}
	return r.customID
}

func (r *Record) Global() bool {
	return r.global
}

func (r *Record) GuildID() string {
	return r.guildID
}

func (r *Record) MessageID() string {
	return r.messageID
}

func (r *Record) CustomID() string {
	return r.customID
}

func (r *Record) UserID() string {
	return r.userID
}

func (r *Record) Handler() Handler {
	return r.handler
}

func (r *Record) InstancedHandler() InstancedHandler {
	return r.instanced
}
