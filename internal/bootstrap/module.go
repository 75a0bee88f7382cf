package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"helpdesk/internal/bootstrap/config"
	"helpdesk/internal/bootstrap/database"
	"helpdesk/internal/bootstrap/logging"
	domainhelpdesk "helpdesk/internal/domain/helpdesk"
	"helpdesk/internal/errs"
	cacheinfra "helpdesk/internal/infrastructure/cache"
	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	"helpdesk/internal/infrastructure/strapi"
	"helpdesk/internal/ports"
	"helpdesk/internal/usecase/helpdesk"
	"helpdesk/internal/usecase/session"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideCache),
	fx.Provide(provideSession),
	fx.Provide(provideClient),
	fx.Provide(provideHandlers),
	fx.Provide(helpdesk.NewBroadcaster),
	fx.Provide(
		fx.Annotate(
			func(b *helpdesk.Broadcaster) *helpdesk.Broadcaster { return b },
			fx.As(new(ports.Notifier)),
		),
	),
	fx.Provide(
		fx.Annotate(
			func(s *session.Service) *session.Service { return s },
			fx.As(new(ports.Principal)),
		),
	),
	fx.Provide(helpdesk.NewService),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	return config.Load(logging.WithComponent(p.Ctx, "bootstrap.fx"), p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return database.Close(db)
		},
	})

	return db, nil
}

// provideCache selects the session store. The SQLite table is created on
// demand so commands work before init-db has run.
func provideCache(lc fx.Lifecycle, ctx context.Context, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Driver)) {
	case "", "sqlite":
		if err := db.WithContext(ctx).AutoMigrate(&model.KV{}); err != nil {
			return nil, errs.Wrap(err, "migrate kv table")
		}
		logging.Info(logCtx, "cache ready", slog.String("driver", "sqlite"))
		return cacheinfra.NewSQLiteCache(db), nil
	case "redis":
		store := cacheinfra.NewRedisCache(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, cfg.Cache.Redis.Prefix)
		lc.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				if err := store.Ping(startCtx); err != nil {
					return errs.Wrap(err, "ping redis")
				}
				logging.Info(logCtx, "cache ready", slog.String("driver", "redis"), slog.String("addr", cfg.Cache.Redis.Addr))
				return nil
			},
			OnStop: func(_ context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

// provideSession authenticates through its own anonymous client; the main
// client in turn reads its token from the session.
func provideSession(lc fx.Lifecycle, cfg config.Config, store ports.Cache) (*session.Service, error) {
	anonymous, err := strapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	if err != nil {
		return nil, errs.Wrap(err, "create auth client")
	}
	svc := session.NewService(store, anonymous)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.Load(ctx)
			return err
		},
	})
	return svc, nil
}

func provideClient(cfg config.Config, sess *session.Service) (*strapi.Client, error) {
	return strapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, strapi.WithPrincipal(sess))
}

func provideHandlers(client *strapi.Client) helpdesk.Handlers {
	return helpdesk.Handlers{
		Tickets:        strapi.NewHandler[domainhelpdesk.Ticket](client, strapi.PathTickets),
		Conversations:  strapi.NewHandler[domainhelpdesk.Conversation](client, strapi.PathConversations),
		KnowledgeBases: strapi.NewHandler[domainhelpdesk.KnowledgeBase](client, strapi.PathKnowledgeBases),
		Notifications:  strapi.NewHandler[domainhelpdesk.Notification](client, strapi.PathNotifications),
		Comments:       strapi.NewHandler[domainhelpdesk.Comment](client, strapi.PathComments),
		Activities:     strapi.NewHandler[domainhelpdesk.Activity](client, strapi.PathActivities),
		Agents:         strapi.NewHandler[domainhelpdesk.Agent](client, strapi.PathAgents),
		Organisations:  strapi.NewHandler[domainhelpdesk.Organisation](client, strapi.PathOrganisations),
	}
}

func provideApp(cfg config.Config, db *gorm.DB, sess *session.Service, notices *helpdesk.Broadcaster) *App {
	return &App{
		Config:  cfg,
		DB:      db,
		Session: sess,
		Notices: notices,
	}
}
