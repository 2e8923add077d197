package engine

import (
	"context"

	"opsportal/internal/domain"
)

func (e Engine) ImportDefinition(ctx context.Context, raw []byte, activate bool, actorID string) (domain.ProcessDefinition, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	defer tx.Rollback()
	def, err := e.Registry.Import(ctx, tx, raw, activate, actorID)
	if err != nil {
		return def, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProcessDefinition{}, err
	}
	return def, nil
}

func (e Engine) ActivateDefinition(ctx context.Context, id, actorID string) (domain.ProcessDefinition, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	defer tx.Rollback()
	def, err := e.Registry.Activate(ctx, tx, id, actorID)
	if err != nil {
		return def, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProcessDefinition{}, err
	}
	return def, nil
}

func (e Engine) ListDefinitions(ctx context.Context) ([]domain.ProcessDefinition, error) {
	return e.Registry.List(ctx)
}

// GetDefinition returns a definition by id, or the active one when id is empty.
func (e Engine) GetDefinition(ctx context.Context, id string) (domain.ProcessDefinition, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	defer tx.Rollback()
	if id == "" {
		return e.Registry.GetActive(ctx, tx)
	}
	return e.Registry.Get(ctx, tx, id)
}

// EnsureActiveDefinition installs the built-in process when nothing is active.
func (e Engine) EnsureActiveDefinition(ctx context.Context, actorID string) (domain.ProcessDefinition, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	defer tx.Rollback()
	def, err := e.Registry.EnsureActive(ctx, tx, actorID)
	if err != nil {
		return def, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProcessDefinition{}, err
	}
	return def, nil
}
