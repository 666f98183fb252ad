package executor

import (
	"context"
	"runtime"
	"sync"
	"weak"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
)

// OnlyOnce runs the next executor for the first invocation of each record and
// removes the record from the holder. Later and racing invocations are dropped.
type OnlyOnce struct {
	holder Remover
	next   Executor

	// Keys are weak so a fired record's entry goes away with the record.
	fired sync.Map
}

func NewOnlyOnce(holder Remover, next Executor) *OnlyOnce {
	return &OnlyOnce{holder: holder, next: next}
}

func (o *OnlyOnce) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	key := weak.Make(rec)
	if _, loaded := o.fired.LoadOrStore(key, struct{}{}); loaded {
		return nil
	}
	runtime.AddCleanup(rec, func(k weak.Pointer[models.Record]) {
		o.fired.Delete(k)
	}, key)

	o.holder.Remove(rec)
	return o.next.Execute(ctx, rec, i)
}

func (o *OnlyOnce) tracked() int {
	n := 0
	o.fired.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}
