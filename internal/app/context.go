package app

import (
	"context"
	"database/sql"
	"fmt"

	"opsportal/internal/config"
	"opsportal/internal/db"
	"opsportal/internal/engine"
	"opsportal/internal/migrate"
)

// Workspace is an opened portal workspace: its config, its migrated
// database and the engine built on both.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// Open loads portal.yml (or the defaults), opens and migrates the database
// and makes sure a process definition is active.
func Open(ctx context.Context, dir, actorID string) (*Workspace, error) {
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	if actorID == "" {
		actorID = "local-user"
	}
	if _, err := e.EnsureActiveDefinition(ctx, actorID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed process definition: %w", err)
	}
	return &Workspace{Dir: dir, DB: conn, Config: cfg, Engine: e}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// With opens the workspace, runs fn and closes it again.
func With(ctx context.Context, dir, actorID string, fn func(context.Context, engine.Engine) error) error {
	w, err := Open(ctx, dir, actorID)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(ctx, w.Engine)
}
