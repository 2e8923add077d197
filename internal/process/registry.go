package process

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"opsportal/internal/domain"
	"opsportal/internal/events"
	"opsportal/internal/repo"
)

// ErrNoActive is returned by GetActive when no definition carries the active flag.
var ErrNoActive = errors.New("no active process definition")

// Registry stores definitions and tracks which one is active. All methods
// that change state run inside the caller's transaction.
type Registry struct {
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func (r Registry) now() string {
	if r.Now == nil {
		return time.Now().UTC().Format(time.RFC3339)
	}
	return r.Now().UTC().Format(time.RFC3339)
}

func (r Registry) decode(rec repo.DefinitionRecord) (domain.ProcessDefinition, error) {
	return fromRecord(rec.ID, rec.Key, rec.Version, rec.Name, rec.IsActive, rec.JSON, rec.CreatedAt)
}

// GetActive returns the active definition.
func (r Registry) GetActive(ctx context.Context, tx *sql.Tx) (domain.ProcessDefinition, error) {
	rec, err := r.Repo.ActiveDefinition(ctx, tx)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ProcessDefinition{}, ErrNoActive
	}
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	return r.decode(rec)
}

func (r Registry) Get(ctx context.Context, tx *sql.Tx, id string) (domain.ProcessDefinition, error) {
	rec, err := r.Repo.GetDefinition(ctx, tx, id)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	return r.decode(rec)
}

// EnsureActive returns the active definition, installing the built-in one
// when none is active.
func (r Registry) EnsureActive(ctx context.Context, tx *sql.Tx, actorID string) (domain.ProcessDefinition, error) {
	def, err := r.GetActive(ctx, tx)
	if !errors.Is(err, ErrNoActive) {
		return def, err
	}
	doc := DefaultDocument()
	existing, err := r.Repo.DefinitionByKeyVersion(ctx, tx, doc.Key, doc.Version)
	switch {
	case err == nil:
		if err := r.Repo.ActivateDefinition(ctx, tx, existing.ID); err != nil {
			return domain.ProcessDefinition{}, err
		}
		if err := r.Events.Append(ctx, tx, events.DefinitionActive, events.Scope{}, actorID, events.EventPayload{
			"definitionId": existing.ID, "key": existing.Key, "version": existing.Version,
		}); err != nil {
			return domain.ProcessDefinition{}, err
		}
		existing.IsActive = true
		return r.decode(existing)
	case errors.Is(err, repo.ErrNotFound):
		return r.store(ctx, tx, doc, true, actorID)
	default:
		return domain.ProcessDefinition{}, err
	}
}

// Import stores raw as a new version of its key. The version in the document
// is used when given, otherwise the next free version is assigned.
func (r Registry) Import(ctx context.Context, tx *sql.Tx, raw []byte, activate bool, actorID string) (domain.ProcessDefinition, error) {
	doc, err := Parse(raw)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	latest, err := r.Repo.MaxDefinitionVersion(ctx, tx, doc.Key)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	if doc.Version == 0 {
		doc.Version = latest + 1
	} else if _, err := r.Repo.DefinitionByKeyVersion(ctx, tx, doc.Key, doc.Version); err == nil {
		return domain.ProcessDefinition{}, InvalidDefinitionError{Field: "version", Message: fmt.Sprintf("%s v%d already exists", doc.Key, doc.Version)}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.ProcessDefinition{}, err
	}
	return r.store(ctx, tx, doc, activate, actorID)
}

func (r Registry) store(ctx context.Context, tx *sql.Tx, doc Document, activate bool, actorID string) (domain.ProcessDefinition, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return domain.ProcessDefinition{}, fmt.Errorf("marshal process definition: %w", err)
	}
	rec := repo.DefinitionRecord{
		ID:        uuid.NewString(),
		Key:       doc.Key,
		Version:   doc.Version,
		Name:      doc.Name,
		JSON:      string(data),
		CreatedAt: r.now(),
	}
	if err := r.Repo.InsertDefinition(ctx, tx, rec); err != nil {
		return domain.ProcessDefinition{}, err
	}
	if err := r.Events.Append(ctx, tx, events.DefinitionCreated, events.Scope{}, actorID, events.EventPayload{
		"definitionId": rec.ID, "key": rec.Key, "version": rec.Version, "steps": len(doc.Steps),
	}); err != nil {
		return domain.ProcessDefinition{}, err
	}
	if activate {
		return r.Activate(ctx, tx, rec.ID, actorID)
	}
	return r.decode(rec)
}

// Activate makes id the only active definition.
func (r Registry) Activate(ctx context.Context, tx *sql.Tx, id, actorID string) (domain.ProcessDefinition, error) {
	rec, err := r.Repo.GetDefinition(ctx, tx, id)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	def, err := r.decode(rec)
	if err != nil {
		return domain.ProcessDefinition{}, err
	}
	if rec.IsActive {
		return def, nil
	}
	if err := r.Repo.ActivateDefinition(ctx, tx, id); err != nil {
		return domain.ProcessDefinition{}, err
	}
	if err := r.Events.Append(ctx, tx, events.DefinitionActive, events.Scope{}, actorID, events.EventPayload{
		"definitionId": rec.ID, "key": rec.Key, "version": rec.Version,
	}); err != nil {
		return domain.ProcessDefinition{}, err
	}
	def.IsActive = true
	return def, nil
}

// List returns every stored definition, newest version first within a key.
// Records that no longer decode are skipped.
func (r Registry) List(ctx context.Context) ([]domain.ProcessDefinition, error) {
	recs, err := r.Repo.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProcessDefinition, 0, len(recs))
	for _, rec := range recs {
		def, err := r.decode(rec)
		if err != nil {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}
