package models

import "errors"

var (
	ErrNoHandler       = errors.New("interaction has no handler")
	ErrTwoHandlers     = errors.New("interaction has both a plain and an instanced handler")
	ErrNoName          = errors.New("command has no name")
	ErrNoDiscriminator = errors.New("component needs a message id, custom id or user id")
)
