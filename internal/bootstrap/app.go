package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"helpdesk/internal/bootstrap/config"
	"helpdesk/internal/bootstrap/database"
	"helpdesk/internal/bootstrap/logging"
	"helpdesk/internal/errs"
	"helpdesk/internal/infrastructure/devbackend"
	"helpdesk/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "helpdesk/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "helpdesk/internal/infrastructure/persistence/sqlite/uow"
	"helpdesk/internal/usecase/helpdesk"
	"helpdesk/internal/usecase/session"
)

type App struct {
	Config  config.Config
	DB      *gorm.DB
	Session *session.Service
	Notices *helpdesk.Broadcaster
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(&model.KV{}); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}

// DevBackend is the local backend with the database it owns.
type DevBackend struct {
	Server *devbackend.Server
	DB     *gorm.DB
}

// OpenDevBackend opens and migrates the dev backend's document store.
func OpenDevBackend(ctx context.Context, cfg config.Config) (*DevBackend, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	logCtx := logging.WithComponent(ctx, "bootstrap.devbackend")

	db, err := database.OpenDSN(logCtx, cfg.Database.Driver, cfg.DevBackend.DSN)
	if err != nil {
		return nil, errs.Wrap(err, "open dev backend database")
	}
	if err := db.WithContext(ctx).AutoMigrate(&model.Document{}); err != nil {
		_ = database.Close(db)
		return nil, errs.Wrap(err, "migrate dev backend schema")
	}

	server, err := devbackend.NewServer(sqliterepo.NewDocumentRepository(db), sqliteuow.NewUnitOfWork(db))
	if err != nil {
		_ = database.Close(db)
		return nil, errs.Wrap(err, "create dev backend")
	}
	logging.Info(logCtx, "dev backend ready", slog.String("dsn", cfg.DevBackend.DSN))
	return &DevBackend{Server: server, DB: db}, nil
}

func (b *DevBackend) Close() error {
	return database.Close(b.DB)
}
