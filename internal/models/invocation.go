package models

import (
	"encoding/json"
	"time"

	dg "github.com/bwmarrin/discordgo"
)

// Invocation is the audit row written for every dispatched interaction.
// Created is the dispatch time; rows are written later.
type Invocation struct {
	RunID       string
	Name        string
	Interaction *dg.Interaction
	Created     time.Time
}

func (i Invocation) Map() map[string]any {
	ib, _ := json.Marshal(i.Interaction)
	m := map[string]any{
		"run_id":      i.RunID,
		"name":        i.Name,
		"guild_id":    i.Interaction.GuildID,
		"interaction": ib,
	}
	if !i.Created.IsZero() {
		m["created"] = i.Created
	}
	return m
}

func (i Invocation) Table() Table {
	return TableInvocations
}
