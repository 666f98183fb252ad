package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/glotchimo/herald/internal/cache"
	"github.com/glotchimo/herald/internal/components"
	"github.com/glotchimo/herald/internal/database"
	"github.com/glotchimo/herald/internal/dispatcher"
	"github.com/glotchimo/herald/internal/executor"
	"github.com/glotchimo/herald/internal/handlers"
	"github.com/glotchimo/herald/internal/handlers/commands"
	"github.com/glotchimo/herald/internal/holder"
	"github.com/glotchimo/herald/internal/models"
	"github.com/glotchimo/herald/internal/permissions"
	"github.com/glotchimo/herald/internal/registrar"
	"github.com/glotchimo/herald/internal/response"
	"github.com/glotchimo/herald/internal/rest"
	"github.com/glotchimo/herald/internal/service"
	"github.com/glotchimo/herald/internal/utils"
	"github.com/graxinc/errutil"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var VERSION = "dev"

type Conf struct {
	Debug        bool          `env:"DEBUG"`
	Token        string        `env:"BOT_TOKEN,required"`
	Intents      int           `env:"BOT_INTENTS" envDefault:"1"`
	GuildID      string        `env:"GUILD_ID"`
	Registrar    string        `env:"REGISTRAR" envDefault:"bulk"`
	Workers      int           `env:"WORKERS" envDefault:"16"`
	DeferMessage string        `env:"DEFER_MESSAGE"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	CacheURL     string        `env:"REDIS_URL"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	RegisterRate float64       `env:"REGISTER_RATE" envDefault:"1"`
	QuitRoles    []string      `env:"QUIT_ROLES"`
	QuitUsers    []string      `env:"QUIT_USERS"`
}

func main() {
	root := &cobra.Command{
		Use:           "herald",
		Short:         "Discord interaction bot",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Register commands and serve interactions until interrupted",
			RunE:  run,
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Re-sync commands and permissions once",
			RunE:  refresh,
		},
		&cobra.Command{
			Use:   "unregister",
			Short: "Remove every declared command",
			RunE:  unregister,
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type bot struct {
	conf Conf
	l    *slog.Logger
	s    *dg.Session
	db   *database.Database
	kv   *cache.Cache
	cmds *cache.Commands
	svc  *service.Service
	quit context.CancelFunc
}

func load() (Conf, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Conf{}, errutil.With(err)
	}

	var conf Conf
	if err := env.Parse(&conf); err != nil {
		return Conf{}, errutil.With(err)
	}
	return conf, nil
}

func newBot(quit context.CancelFunc) (*bot, error) {
	conf, err := load()
	if err != nil {
		return nil, err
	}

	b := bot{conf: conf, quit: quit}

	if conf.Debug {
		b.l = slog.Default()
	} else {
		b.l = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}

	session, err := dg.New("Bot " + conf.Token)
	if err != nil {
		return nil, errutil.With(err)
	}
	session.Identify.Intents = dg.Intent(conf.Intents)
	b.s = session

	if conf.DatabaseURL != "" {
		if b.db, err = database.NewDatabase(b.l, conf.DatabaseURL); err != nil {
			return nil, errutil.With(err)
		}
	}

	var hashes cache.HashStore
	if b.db != nil {
		hashes = b.db
	}
	if conf.CacheURL != "" {
		if b.kv, err = cache.NewCache(conf.CacheURL, b.l, hashes, conf.CacheTTL); err != nil {
			return nil, errutil.With(err)
		}
		hashes = b.kv
	}

	resolver := permissions.Static{
		"quit": {Roles: conf.QuitRoles, Users: conf.QuitUsers},
	}.OrEveryone()

	client := rest.NewSession(session)
	b.cmds = cache.NewCommands(client, cache.WithLogger(b.l))

	opts := []registrar.Option{
		registrar.WithLogger(b.l),
		registrar.WithPermissions(resolver),
		registrar.WithCache(b.cmds),
	}
	if conf.GuildID != "" {
		opts = append(opts, registrar.WithGuildResolver(registrar.OneGuild(conf.GuildID)))
	}

	var reg registrar.Registrar
	switch conf.Registrar {
	case "bulk":
		if hashes != nil {
			opts = append(opts, registrar.WithHashStore(hashes))
		}
		reg = registrar.NewBulk(client, opts...)
	case "onebyone":
		opts = append(opts, registrar.WithLimiter(rate.NewLimiter(rate.Limit(conf.RegisterRate), 1)))
		reg = registrar.NewOneByOne(client, b.cmds, opts...)
	default:
		return nil, fmt.Errorf("unknown registrar %q", conf.Registrar)
	}

	h := holder.New()
	pool := executor.NewPool(b.l, conf.Workers)
	responder := response.NewSessionResponder(session, b.l)

	executors := func() *executor.Builder {
		return executor.NewBuilder().
			WithLogger(b.l).
			WithPool(pool).
			WithReporter(responder).
			WithDefer(responder, conf.DeferMessage).
			WithPermissionCheck(resolver)
	}

	dispatchOpts := []dispatcher.Option{dispatcher.WithLogger(b.l), dispatcher.WithPool(pool)}
	if b.db != nil {
		dispatchOpts = append(dispatchOpts, dispatcher.WithRecorder(b.db))
	}

	b.svc = service.New(service.Config{
		Logger:     b.l,
		Holder:     h,
		Registrar:  reg,
		Dispatcher: dispatcher.New(h, dispatchOpts...),
		Subscriber: session,
		Pool:       pool,
		Dependencies: handlers.Dependencies{
			Holder:     h,
			Responder:  responder,
			Components: components.NewHelper(h, executors),
			Logger:     b.l,
			Executors:  executors,
			GuildID:    conf.GuildID,
			Latency:    session.HeartbeatLatency,
			Quit:       quit,
		},
		Groups: []handlers.Group{
			&commands.Ping{},
			&commands.Quit{},
		},
	})

	return &b, nil
}

func (b *bot) open(ctx context.Context) error {
	var mu sync.Mutex
	ready := make(map[string]bool)
	connected := make(chan struct{}, 1)

	b.s.AddHandler(func(s *dg.Session, r *dg.Ready) {
		mu.Lock()
		for _, g := range r.Guilds {
			ready[g.ID] = true
		}
		mu.Unlock()

		b.l.Info("bot connected to gateway",
			"bot", r.User.Username,
			"guilds", len(r.Guilds),
			"version", utils.GetCommit(),
		)
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	b.s.AddHandler(func(s *dg.Session, g *dg.GuildCreate) {
		mu.Lock()
		known := ready[g.ID]
		ready[g.ID] = true
		mu.Unlock()

		if known {
			return
		}
		if err := b.svc.RegisterGuild(ctx, g.ID); err != nil {
			b.l.Error("error registering guild commands", "guild", g.ID, "error", err)
		}
	})

	if err := b.s.Open(); err != nil {
		return errutil.With(err)
	}

	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return errutil.With(ctx.Err())
	}
}

func (b *bot) close() {
	b.cmds.Close()
	if b.kv != nil {
		b.kv.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
	b.s.Close()
}

// status rotates the bot's custom status between a few counters.
func (b *bot) status(ctx context.Context) {
	if b.db == nil {
		return
	}

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := b.db.Count(ctx, models.TableInvocations, nil)
			if err != nil {
				b.l.Error("error counting invocations", "error", err)
				continue
			}

			if err := b.s.UpdateStatusComplex(dg.UpdateStatusData{
				Status: string(dg.StatusOnline),
				Activities: []*dg.Activity{
					{
						Name:  "herald",
						Type:  dg.ActivityTypeCustom,
						State: fmt.Sprintf("%d commands handled", count),
					},
				},
			}); err != nil {
				b.l.Error("error setting bot status", "error", err)
			}
		}
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	b, err := newBot(cancel)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.open(ctx); err != nil {
		return err
	}

	if err := b.svc.Start(ctx); err != nil {
		return err
	}

	go b.status(ctx)

	<-ctx.Done()

	stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	return b.svc.Stop(stopCtx)
}

func refresh(cmd *cobra.Command, _ []string) error {
	return once(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
		return svc.Refresh(ctx)
	})
}

func unregister(cmd *cobra.Command, _ []string) error {
	return once(cmd.Context(), func(ctx context.Context, svc *service.Service) error {
		return svc.Unregister(ctx)
	})
}

func once(parent context.Context, fn func(context.Context, *service.Service) error) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	defer cancel()

	b, err := newBot(cancel)
	if err != nil {
		return err
	}
	defer b.close()

	if err := b.open(ctx); err != nil {
		return err
	}

	if err := b.svc.Setup(ctx); err != nil {
		return err
	}

	return fn(ctx, b.svc)
}
