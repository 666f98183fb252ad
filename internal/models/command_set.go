package models

import "time"

// ScopeGlobal is the command set scope key used for global commands.
const ScopeGlobal = "global"

// CommandSet tracks the hash of the last command set overwritten in a scope.
type CommandSet struct {
	Scope   string
	Hash    string
	Created time.Time
	Updated time.Time
}

func (c CommandSet) Map() map[string]any {
	return map[string]any{
		"scope": c.Scope,
		"hash":  c.Hash,
	}
}

func (c CommandSet) Table() Table {
	return TableCommandSets
}
