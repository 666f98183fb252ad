package executor

import (
	"context"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
)

// RemoveInteractions retires a fixed set of records, typically the sibling
// choices of a prompt, before running the next executor.
type RemoveInteractions struct {
	holder  Remover
	records []*models.Record
	next    Executor
}

func NewRemoveInteractions(holder Remover, records []*models.Record, next Executor) *RemoveInteractions {
	return &RemoveInteractions{holder: holder, records: records, next: next}
}

func (r *RemoveInteractions) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	for _, other := range r.records {
		r.holder.Remove(other)
	}

	return r.next.Execute(ctx, rec, i)
}
