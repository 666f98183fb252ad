package models

import (
	dg "github.com/bwmarrin/discordgo"
)

type CommandBuilder struct {
	command   *dg.ApplicationCommand
	global    bool
	guildID   string
	handler   Handler
	instanced InstancedHandler
}

// NewCommand starts building a guild-scoped command record.
func NewCommand(cmd *dg.ApplicationCommand) *CommandBuilder {
	return &CommandBuilder{command: cmd}
}

func (b *CommandBuilder) WithHandler(h Handler) *CommandBuilder {
	b.handler = h
	return b
}

func (b *CommandBuilder) WithInstancedHandler(h InstancedHandler) *CommandBuilder {
	b.instanced = h
	return b
}

func (b *CommandBuilder) SetGlobal() *CommandBuilder {
	b.global = true
	b.guildID = ""
	return b
}

func (b *CommandBuilder) WithGuild(guildID string) *CommandBuilder {
	b.guildID = guildID
	b.global = false
	return b
}

func (b *CommandBuilder) Build() (*Record, error) {
	if b.command == nil || b.command.Name == "" {
		return nil, ErrNoName
	}
	if err := checkHandlers(b.handler, b.instanced); err != nil {
		return nil, err
	}

	cmd := *b.command
	if cmd.Type == 0 {
		cmd.Type = dg.ChatApplicationCommand
	}

	return &Record{
		kind:      KindCommand,
		command:   &cmd,
		global:    b.global,
		guildID:   b.guildID,
		handler:   b.handler,
		instanced: b.instanced,
	}, nil
}

// NewComponent builds a message component record. Empty constraints match
// anything, but at least one of them must be set.
func NewComponent(h Handler, messageID, userID, customID string) (*Record, error) {
	return newComponent(h, nil, messageID, userID, customID)
}

func NewInstancedComponent(h InstancedHandler, messageID, userID, customID string) (*Record, error) {
	return newComponent(nil, h, messageID, userID, customID)
}

func newComponent(h Handler, ih InstancedHandler, messageID, userID, customID string) (*Record, error) {
	if messageID == "" && userID == "" && customID == "" {
		return nil, ErrNoDiscriminator
	}
	if err := checkHandlers(h, ih); err != nil {
		return nil, err
	}

	return &Record{
		kind:      KindComponent,
		messageID: messageID,
		userID:    userID,
		customID:  customID,
		handler:   h,
		instanced: ih,
	}, nil
}

func checkHandlers(h Handler, ih InstancedHandler) error {
	switch {
	case h == nil && ih == nil:
		return ErrNoHandler
	case h != nil && ih != nil:
		return ErrTwoHandlers
	}
	return nil
}
