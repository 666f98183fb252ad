// Package components registers handlers for the buttons and menus of a sent
// message.
package components

import (
	"errors"

	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/holder"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
)

var ErrNoChoices = errors.New("no component choices")

// Choice is one component of a message and the handler it triggers.
type Choice struct {
	CustomID string
	Handler  models.Handler
}

// Helper builds component records sharing one executor and adds them to a
// holder.
type Helper struct {
	h    *holder.Holder
	base func() *executor.Builder
}

// NewHelper uses base for the builder every call starts from, e.g. one with
// the logger, pool and deferrer already set.
func NewHelper(h *holder.Holder, base func() *executor.Builder) *Helper {
	return &Helper{h: h, base: base}
}

// NewCustomID returns a custom id unique to this process run.
func NewCustomID(prefix string) string {
	return prefix + ":" + utils.GenerateID()
}

// ForMessage registers every choice for messageID, optionally restricted to
// userID. configure may be nil.
func (c *Helper) ForMessage(messageID, userID string, configure func(*executor.Builder), choices ...Choice) ([]*models.Record, error) {
	return c.register(messageID, userID, configure, false, choices)
}

// ForMessageChoice is ForMessage where picking one choice retires all of
// them.
func (c *Helper) ForMessageChoice(messageID, userID string, configure func(*executor.Builder), choices ...Choice) ([]*models.Record, error) {
	return c.register(messageID, userID, configure, true, choices)
}

func (c *Helper) register(messageID, userID string, configure func(*executor.Builder), exclusive bool, choices []Choice) ([]*models.Record, error) {
	if len(choices) == 0 {
		return nil, ErrNoChoices
	}

	records := make([]*models.Record, 0, len(choices))
	for _, choice := range choices {
		rec, err := models.NewComponent(choice.Handler, messageID, userID, choice.CustomID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	b := c.base()
	if configure != nil {
		configure(b)
	}
	if exclusive {
		b.WithRemoveInteractions(c.h, records...)
	}

	exec, err := b.Build()
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		c.h.Add(rec, exec)
	}

	return records, nil
}
