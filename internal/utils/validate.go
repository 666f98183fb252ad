package utils

import (
	"strings"

	dg "github.com/bwmarrin/discordgo"
)

const (
	maxCommandNameLength        = 32
	maxCommandDescriptionLength = 100
	maxOptionsPerCommand        = 25
	maxChoicesPerOption         = 25
	maxOptionNameLength         = 32
	maxOptionDescLength         = 100
	maxChoiceNameLength         = 100
	maxChoiceValueLength        = 100
)

type ValidationResult struct {
	Command     *dg.ApplicationCommand
	WasModified bool
	Errors      []string
}

// ValidateCommand clamps a command to Discord's limits. The input is left
// untouched; the result holds a modified copy when anything had to change.
func ValidateCommand(cmd *dg.ApplicationCommand) ValidationResult {
	c := *cmd
	result := ValidationResult{Command: &c}

	if c.Type == dg.ChatApplicationCommand || c.Type == 0 {
		if lower := strings.ToLower(c.Name); lower != c.Name {
			c.Name = lower
			result.WasModified = true
			result.Errors = append(result.Errors, "Command name was lowercased")
		}
	}

	if len(c.Name) > maxCommandNameLength {
		c.Name = c.Name[:maxCommandNameLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Command name was truncated")
	}

	if len(c.Description) > maxCommandDescriptionLength {
		c.Description = c.Description[:maxCommandDescriptionLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Command description was truncated")
	}

	if len(c.Options) > maxOptionsPerCommand {
		c.Options = c.Options[:maxOptionsPerCommand]
		result.WasModified = true
		result.Errors = append(result.Errors, "Excess options were removed")
	}

	if len(c.Options) > 0 {
		opts := make([]*dg.ApplicationCommandOption, len(c.Options))
		for i, opt := range c.Options {
			o := *opt
			opts[i] = &o
			validateOption(&o, &result)
		}
		c.Options = opts
	}

	return result
}

func validateOption(opt *dg.ApplicationCommandOption, result *ValidationResult) {
	if len(opt.Name) > maxOptionNameLength {
		opt.Name = opt.Name[:maxOptionNameLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Option name was truncated")
	}

	if len(opt.Description) > maxOptionDescLength {
		opt.Description = opt.Description[:maxOptionDescLength]
		result.WasModified = true
		result.Errors = append(result.Errors, "Option description was truncated")
	}

	if len(opt.Choices) > maxChoicesPerOption {
		opt.Choices = opt.Choices[:maxChoicesPerOption]
		result.WasModified = true
		result.Errors = append(result.Errors, "Excess choices were removed")
	}

	if len(opt.Choices) > 0 {
		choices := make([]*dg.ApplicationCommandOptionChoice, len(opt.Choices))
		for j, choice := range opt.Choices {
			ch := *choice
			choices[j] = &ch

			if len(ch.Name) > maxChoiceNameLength {
				ch.Name = ch.Name[:maxChoiceNameLength]
				result.WasModified = true
				result.Errors = append(result.Errors, "Choice name was truncated")
			}

			if strVal, ok := ch.Value.(string); ok && len(strVal) > maxChoiceValueLength {
				ch.Value = strVal[:maxChoiceValueLength]
				result.WasModified = true
				result.Errors = append(result.Errors, "Choice value was truncated")
			}
		}
		opt.Choices = choices
	}

	if len(opt.Options) > 0 {
		subs := make([]*dg.ApplicationCommandOption, len(opt.Options))
		for i, sub := range opt.Options {
			s := *sub
			subs[i] = &s
			validateOption(&s, result)
		}
		opt.Options = subs
	}
}
