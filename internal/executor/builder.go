package executor

import (
	"log/slog"

	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/permissions"
)

// Builder assembles an executor chain. The nesting is fixed, outermost first:
// ThreadPool, RemoveInteractions, AutoDefer, PermissionCheck, OnlyOnce, base.
type Builder struct {
	l        *slog.Logger
	base     Executor
	factory  Factory
	reporter Reporter

	deferring    bool
	deferrer     Deferrer
	deferMessage string

	resolver permissions.Resolver

	onceHolder Remover

	removeHolder Remover
	remove       []*models.Record

	pool *Pool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// WithLogger sets the logger used by the base handler and permission check.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.l = l
	return b
}

// WithBase replaces the default Handler executor.
func (b *Builder) WithBase(e Executor) *Builder {
	b.base = e
	return b
}

// WithFactory sets the instance factory of the default Handler executor.
func (b *Builder) WithFactory(f Factory) *Builder {
	b.factory = f
	return b
}

// WithReporter sends utils.Failure errors returned by the default Handler
// back to the user.
func (b *Builder) WithReporter(r Reporter) *Builder {
	b.reporter = r
	return b
}

// WithDefer acknowledges interactions before running them. An empty message
// sends a defer, anything else is sent as an ephemeral response.
func (b *Builder) WithDefer(d Deferrer, message string) *Builder {
	b.deferring = true
	b.deferrer = d
	b.deferMessage = message
	return b
}

func (b *Builder) WithPermissionCheck(r permissions.Resolver) *Builder {
	b.resolver = r
	return b
}

func (b *Builder) OnlyOnce(holder Remover) *Builder {
	b.onceHolder = holder
	return b
}

func (b *Builder) WithRemoveInteractions(holder Remover, records ...*models.Record) *Builder {
	b.removeHolder = holder
	b.remove = records
	return b
}

func (b *Builder) WithPool(p *Pool) *Builder {
	b.pool = p
	return b
}

func (b *Builder) Build() (Executor, error) {
	executor := b.base
	if executor == nil {
		if b.l == nil {
			return nil, ErrNoLogger
		}
		executor = NewHandler(b.l, b.factory).WithReporter(b.reporter)
	}

	if b.onceHolder != nil {
		executor = NewOnlyOnce(b.onceHolder, executor)
	}

	if b.resolver != nil {
		if b.l == nil {
			return nil, ErrNoLogger
		}
		executor = NewPermissionCheck(b.l, b.resolver, executor)
	}

	if b.deferring {
		if b.deferrer == nil {
			return nil, ErrNoDeferrer
		}
		executor = NewAutoDefer(b.deferrer, b.deferMessage, executor)
	}

	if b.removeHolder != nil && len(b.remove) > 0 {
		executor = NewRemoveInteractions(b.removeHolder, b.remove, executor)
	}

	if b.pool != nil {
		executor = NewThreadPool(b.pool, executor)
	}

	return executor, nil
}
