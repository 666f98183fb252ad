package executor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
	"golang.org/x/sync/semaphore"
)

// Pool runs work off the calling goroutine. A positive worker count bounds
// how many jobs run at once; queued jobs wait for a slot.
type Pool struct {
	l   *slog.Logger
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func NewPool(l *slog.Logger, workers int) *Pool {
	p := Pool{l: l}
	if workers > 0 {
		p.sem = semaphore.NewWeighted(int64(workers))
	}
	return &p
}

// Go schedules fn and returns immediately. Errors and panics are logged.
func (p *Pool) Go(ctx context.Context, name string, fn func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]
				p.l.Error("panic recovered in worker", "interaction", name, "recovered", r, "stack", string(stack))
			}
		}()

		if p.sem != nil {
			if err := p.sem.Acquire(ctx, 1); err != nil {
				p.l.Debug("dropped job for cancelled context", "interaction", name)
				return
			}
			defer p.sem.Release(1)
		}

		if err := fn(ctx); err != nil && !canceled(ctx, err) {
			p.l.Error("interaction failed in worker", "interaction", name, "error", err)
		}
	}()
}

// Wait blocks until every scheduled job returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errutil.With(ctx.Err())
	}
}

// ThreadPool hands the rest of the chain to a Pool so the event callback
// never blocks on a handler.
type ThreadPool struct {
	pool *Pool
	next Executor
}

func NewThreadPool(pool *Pool, next Executor) *ThreadPool {
	return &ThreadPool{pool: pool, next: next}
}

func (t *ThreadPool) Execute(ctx context.Context, rec *models.Record, i *dg.Interaction) error {
	t.pool.Go(ctx, utils.InteractionName(i), func(ctx context.Context) error {
		return t.next.Execute(ctx, rec, i)
	})
	return nil
}
