// Package service wires command groups, the registrar and the dispatcher
// into a start/refresh/stop lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/glotchimo/herald/internal/dispatcher"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/handlers"
	"github.com/glotchimo/herald/internal/holder"
	"github.com/glotchimo/herald/internal/registrar"
	"github.com/graxinc/errutil"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStarted    = errors.New("service already started")
	ErrNotStarted = errors.New("service not started")
)

type Config struct {
	Logger       *slog.Logger
	Holder       *holder.Holder
	Registrar    registrar.Registrar
	Dispatcher   *dispatcher.Dispatcher
	Subscriber   dispatcher.Subscriber
	Pool         *executor.Pool
	Dependencies handlers.Dependencies
	Groups       []handlers.Group
}

type Service struct {
	c Config

	mu      sync.Mutex
	ready   bool
	started bool
}

func New(c Config) *Service {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &Service{c: c}
}

// Setup adds every group's interactions to the holder. Groups are set up
// concurrently and only once.
func (s *Service) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setup(ctx)
}

func (s *Service) setup(ctx context.Context) error {
	if s.ready {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range s.c.Groups {
		g.Go(func() error {
			return group.Setup(gctx, s.c.Dependencies)
		})
	}
	if err := g.Wait(); err != nil {
		return errutil.With(err)
	}

	s.ready = true
	return nil
}

// Start sets the groups up, registers the resulting commands and starts
// dispatching.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrStarted
	}

	if err := s.setup(ctx); err != nil {
		return err
	}

	records := s.c.Holder.Records()
	if err := s.c.Registrar.RegisterAll(ctx, records); err != nil {
		return errutil.With(err)
	}

	if err := s.c.Dispatcher.Start(s.c.Subscriber); err != nil {
		return errutil.With(err)
	}

	s.started = true
	s.c.Logger.Info("interaction service started", "groups", len(s.c.Groups), "records", len(records))

	return nil
}

// Refresh re-syncs every held command and its permissions.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.c.Registrar.RefreshAll(ctx, s.c.Holder.Records()); err != nil {
		return errutil.With(err)
	}
	return nil
}

// RegisterGuild registers the held commands that belong to guildID, e.g.
// after the bot joined it.
func (s *Service) RegisterGuild(ctx context.Context, guildID string) error {
	if err := s.c.Registrar.RegisterGuild(ctx, guildID, s.c.Holder.Records()); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Unregister removes every held command without touching the dispatcher.
func (s *Service) Unregister(ctx context.Context) error {
	if err := s.c.Registrar.UnregisterAll(ctx, s.c.Holder.Records()); err != nil {
		return errutil.With(err)
	}
	return nil
}

// Stop unregisters all commands, stops dispatching and waits for running
// handlers until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}
	s.started = false

	var errs []error
	if err := s.c.Registrar.UnregisterAll(ctx, s.c.Holder.Records()); err != nil {
		errs = append(errs, err)
	}

	s.c.Dispatcher.Stop()

	if s.c.Pool != nil {
		if err := s.c.Pool.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.c.Logger.Info("interaction service stopped")

	if err := errors.Join(errs...); err != nil {
		return errutil.With(err)
	}
	return nil
}
