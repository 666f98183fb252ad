package utils

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	dg "github.com/bwmarrin/discordgo"
)

// NormalizeCommand reduces a command to the fields Discord lets us declare,
// dropping ids and versions. Option and choice order is kept since Discord
// shows parameters in declaration order.
func NormalizeCommand(cmd *dg.ApplicationCommand) map[string]any {
	defaultPermission := true
	if cmd.DefaultPermission != nil {
		defaultPermission = *cmd.DefaultPermission
	}

	typ := cmd.Type
	if typ == 0 {
		typ = dg.ChatApplicationCommand
	}

	obj := map[string]any{
		"name":               cmd.Name,
		"description":        cmd.Description,
		"type":               typ,
		"default_permission": defaultPermission,
		"nsfw":               cmd.NSFW != nil && *cmd.NSFW,
	}
	if cmd.DefaultMemberPermissions != nil {
		obj["default_member_permissions"] = *cmd.DefaultMemberPermissions
	}
	if cmd.DMPermission != nil {
		obj["dm_permission"] = *cmd.DMPermission
	}
	if cmd.Contexts != nil {
		obj["contexts"] = *cmd.Contexts
	}
	if cmd.IntegrationTypes != nil {
		obj["integration_types"] = *cmd.IntegrationTypes
	}
	if cmd.NameLocalizations != nil && len(*cmd.NameLocalizations) > 0 {
		obj["name_localizations"] = *cmd.NameLocalizations
	}
	if cmd.DescriptionLocalizations != nil && len(*cmd.DescriptionLocalizations) > 0 {
		obj["description_localizations"] = *cmd.DescriptionLocalizations
	}
	if len(cmd.Options) > 0 {
		obj["options"] = normalizeOptions(cmd.Options)
	}

	return obj
}

func normalizeOptions(opts []*dg.ApplicationCommandOption) []map[string]any {
	normalized := make([]map[string]any, len(opts))

	for i, o := range opts {
		entry := map[string]any{
			"name":         o.Name,
			"description":  o.Description,
			"type":         o.Type,
			"required":     o.Required,
			"autocomplete": o.Autocomplete,
		}
		if len(o.NameLocalizations) > 0 {
			entry["name_localizations"] = o.NameLocalizations
		}
		if len(o.DescriptionLocalizations) > 0 {
			entry["description_localizations"] = o.DescriptionLocalizations
		}
		if len(o.ChannelTypes) > 0 {
			entry["channel_types"] = o.ChannelTypes
		}
		if o.MinValue != nil {
			entry["min_value"] = *o.MinValue
		}
		if o.MaxValue != 0 {
			entry["max_value"] = o.MaxValue
		}
		if o.MinLength != nil {
			entry["min_length"] = *o.MinLength
		}
		if o.MaxLength != 0 {
			entry["max_length"] = o.MaxLength
		}
		if len(o.Choices) > 0 {
			choices := make([]map[string]any, len(o.Choices))
			for j, c := range o.Choices {
				choice := map[string]any{
					"name":  c.Name,
					"value": c.Value,
				}
				if len(c.NameLocalizations) > 0 {
					choice["name_localizations"] = c.NameLocalizations
				}
				choices[j] = choice
			}
			entry["choices"] = choices
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		normalized[i] = entry
	}

	return normalized
}

// SameCommand reports whether a remote command already has the declared
// shape. Discord fills in defaults for the context fields, so those are only
// compared when the declaration sets them.
func SameCommand(remote, declared *dg.ApplicationCommand) bool {
	r := *remote
	if declared.DMPermission == nil {
		r.DMPermission = nil
	}
	if declared.Contexts == nil {
		r.Contexts = nil
	}
	if declared.IntegrationTypes == nil {
		r.IntegrationTypes = nil
	}

	return HashCommands([]*dg.ApplicationCommand{&r}) == HashCommands([]*dg.ApplicationCommand{declared})
}

// HashCommands returns a stable sha256 of a command set, independent of the
// order of the commands.
func HashCommands(commands []*dg.ApplicationCommand) string {
	normalized := make([]map[string]any, len(commands))
	for i, cmd := range commands {
		normalized[i] = NormalizeCommand(cmd)
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		ni, nj := normalized[i]["name"].(string), normalized[j]["name"].(string)
		if ni != nj {
			return ni < nj
		}
		return normalized[i]["type"].(dg.ApplicationCommandType) < normalized[j]["type"].(dg.ApplicationCommandType)
	})

	bytes, err := json.Marshal(normalized)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%x", sha256.Sum256(bytes))
}
