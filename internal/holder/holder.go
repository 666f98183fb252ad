// Package holder keeps the declared interactions and resolves inbound events
// to them.
package holder

import (
	"slices"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/models"
)

// Matcher decides whether an inbound interaction belongs to a held record.
type Matcher interface {
	Matches(i *dg.Interaction, rec *models.Record) bool
}

type Entry struct {
	Record   *models.Record
	Executor executor.Executor
}

type Match struct {
	Matcher Matcher
	Entry
}

type Holder struct {
	mu      sync.Mutex
	entries []Entry
}

func New() *Holder {
	return &Holder{}
}

func (h *Holder) Add(rec *models.Record, exec executor.Executor) *models.Record {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, Entry{Record: rec, Executor: exec})
	return rec
}

// Remove drops every entry holding rec. Unknown records are ignored.
func (h *Holder) Remove(rec *models.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = slices.DeleteFunc(h.entries, func(e Entry) bool {
		return e.Record == rec
	})
}

func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
}

func (h *Holder) Snapshot() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.entries)
}

func (h *Holder) Records() []*models.Record {
	snapshot := h.Snapshot()

	records := make([]*models.Record, len(snapshot))
	for i, e := range snapshot {
		records[i] = e.Record
	}
	return records
}

// TryMatch returns the first entry accepted by the first matcher that accepts
// any entry. Matcher order wins over record order, so matchers should be
// passed from most to least specific.
func (h *Holder) TryMatch(matchers []Matcher, i *dg.Interaction) (Match, bool) {
	snapshot := h.Snapshot()

	for _, m := range matchers {
		for _, e := range snapshot {
			if m.Matches(i, e.Record) {
				return Match{Matcher: m, Entry: e}, true
			}
		}
	}

	return Match{}, false
}
