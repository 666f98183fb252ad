// Package dispatcher routes gateway interaction events to the executors in
// a holder.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/holder"
	"github.com/glotchimo/herald/internal/matcher"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/utils"
)

var (
	ErrStarted    = errors.New("dispatcher already started")
	ErrNotStarted = errors.New("dispatcher not started")
)

// Subscriber registers gateway event handlers; *discordgo.Session is one.
type Subscriber interface {
	AddHandler(handler interface{}) func()
}

// Recorder stores an audit row for every matched interaction. Rows are
// written on a worker pool, never on the event callback.
type Recorder interface {
	Record(ctx context.Context, inv models.Invocation) error
}

type options struct {
	l        *slog.Logger
	matchers []holder.Matcher
	recorder Recorder
	pool     *executor.Pool
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithMatchers replaces matcher.Default.
func WithMatchers(m ...holder.Matcher) Option {
	return func(o *options) { o.matchers = m }
}

func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithPool sets the pool audit rows are written on. Without one the
// dispatcher uses its own unbounded pool.
func WithPool(p *executor.Pool) Option {
	return func(o *options) { o.pool = p }
}

type Dispatcher struct {
	h    *holder.Holder
	opts options

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	remove func()
}

func New(h *holder.Holder, opts ...Option) *Dispatcher {
	o := options{
		l:        slog.Default(),
		matchers: matcher.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pool == nil {
		o.pool = executor.NewPool(o.l, 0)
	}

	return &Dispatcher{h: h, opts: o}
}

// Start subscribes to interaction events. Every dispatched handler shares a
// context that Stop cancels.
func (d *Dispatcher) Start(sub Subscriber) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.remove != nil {
		return ErrStarted
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.remove = sub.AddHandler(func(_ *dg.Session, ic *dg.InteractionCreate) {
		d.Dispatch(ic.Interaction)
	})

	return nil
}

// Stop unsubscribes and cancels running handlers. It is safe to call more
// than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.remove == nil {
		return
	}

	d.remove()
	d.cancel()
	d.remove = nil
}

func (d *Dispatcher) context() (context.Context, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx, d.remove != nil
}

// Dispatch runs the executor of the first matching record and reports
// whether one matched.
func (d *Dispatcher) Dispatch(i *dg.Interaction) bool {
	if i == nil {
		d.opts.l.Warn("received nil interaction in dispatch")
		return false
	}

	name := utils.InteractionName(i)
	runID := utils.GenerateID()
	l := d.opts.l.With("run", runID, "interaction", name)

	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			l.Error("panic recovered", "guild", i.GuildID, "recovered", r, "stack", string(stack))
		}
	}()

	ctx, ok := d.context()
	if !ok {
		l.Warn("dropped interaction", "error", ErrNotStarted)
		return false
	}

	m, ok := d.h.TryMatch(d.opts.matchers, i)
	if !ok {
		l.Debug("no handler matched", "guild", i.GuildID)
		return false
	}

	if d.opts.recorder != nil {
		d.record(ctx, l, models.Invocation{
			RunID:       runID,
			Name:        name,
			Interaction: i,
			Created:     time.Now().UTC(),
		})
	}

	if err := m.Executor.Execute(ctx, m.Record, i); err != nil {
		l.Error("error executing interaction", "guild", i.GuildID, "error", err)
	}

	return true
}

// record writes the audit row in the background. Stop does not cancel the
// write of an interaction that was already dispatched.
func (d *Dispatcher) record(ctx context.Context, l *slog.Logger, inv models.Invocation) {
	d.opts.pool.Go(context.WithoutCancel(ctx), inv.Name, func(ctx context.Context) error {
		if err := d.opts.recorder.Record(ctx, inv); err != nil {
			l.Warn("error storing interaction", "error", err)
		}
		return nil
	})
}
