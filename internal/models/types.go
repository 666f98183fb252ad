package models

type Table string

const (
	TableInvocations Table = "invocations"
	TableCommandSets Table = "command_sets"
)

type Mappable interface {
	Table() Table
	Map() map[string]any
}
