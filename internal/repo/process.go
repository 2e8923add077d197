package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"opsportal/internal/domain"
)

// DefinitionRecord is a stored process definition; JSON holds the steps and lanes.
type DefinitionRecord struct {
	ID        string
	Key       string
	Version   int
	Name      string
	IsActive  bool
	JSON      string
	CreatedAt string
}

const definitionColumns = `id,key,version,COALESCE(name,''),is_active,json,created_at`

func scanDefinition(row rowScanner) (DefinitionRecord, error) {
	var d DefinitionRecord
	var active int
	err := row.Scan(&d.ID, &d.Key, &d.Version, &d.Name, &active, &d.JSON, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrNotFound
	}
	d.IsActive = active == 1
	return d, err
}

func (r Repo) InsertDefinition(ctx context.Context, tx *sql.Tx, d DefinitionRecord) error {
	active := 0
	if d.IsActive {
		active = 1
	}
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO process_definitions(id,key,version,name,is_active,json,created_at) VALUES (?,?,?,?,?,?,?)`,
		d.ID, d.Key, d.Version, nullable(d.Name), active, d.JSON, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert process definition %s v%d: %w", d.Key, d.Version, err)
	}
	return nil
}

func (r Repo) ActiveDefinition(ctx context.Context, tx *sql.Tx) (DefinitionRecord, error) {
	return scanDefinition(r.on(tx).QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM process_definitions WHERE is_active=1 LIMIT 1`))
}

func (r Repo) GetDefinition(ctx context.Context, tx *sql.Tx, id string) (DefinitionRecord, error) {
	d, err := scanDefinition(r.on(tx).QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM process_definitions WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return d, fmt.Errorf("process definition %s: %w", id, ErrNotFound)
	}
	return d, err
}

func (r Repo) DefinitionByKeyVersion(ctx context.Context, tx *sql.Tx, key string, version int) (DefinitionRecord, error) {
	return scanDefinition(r.on(tx).QueryRowContext(ctx, `SELECT `+definitionColumns+` FROM process_definitions WHERE key=? AND version=?`, key, version))
}

func (r Repo) ListDefinitions(ctx context.Context) ([]DefinitionRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+definitionColumns+` FROM process_definitions ORDER BY key, version DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []DefinitionRecord
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) MaxDefinitionVersion(ctx context.Context, tx *sql.Tx, key string) (int, error) {
	var v int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM process_definitions WHERE key=?`, key).Scan(&v)
	return v, err
}

// ActivateDefinition clears the active flag everywhere and sets it on id.
func (r Repo) ActivateDefinition(ctx context.Context, tx *sql.Tx, id string) error {
	q := r.on(tx)
	if _, err := q.ExecContext(ctx, `UPDATE process_definitions SET is_active=0 WHERE is_active=1 AND id!=?`, id); err != nil {
		return fmt.Errorf("deactivate definitions: %w", err)
	}
	res, err := q.ExecContext(ctx, `UPDATE process_definitions SET is_active=1 WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("activate definition: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("process definition %s: %w", id, ErrNotFound)
	}
	return nil
}

const instanceColumns = `id,process_definition_id,project_id,status,current_step_key,started_at,ended_at`

func scanInstance(row rowScanner) (domain.ProcessInstance, error) {
	var in domain.ProcessInstance
	var step, ended sql.NullString
	err := row.Scan(&in.ID, &in.ProcessDefinitionID, &in.ProjectID, &in.Status, &step, &in.StartedAt, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return in, ErrNotFound
	}
	in.CurrentStepKey = fromNull(step)
	in.EndedAt = fromNull(ended)
	return in, err
}

func (r Repo) InsertInstance(ctx context.Context, tx *sql.Tx, in domain.ProcessInstance) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO process_instances(`+instanceColumns+`) VALUES (?,?,?,?,?,?,?)`,
		in.ID, in.ProcessDefinitionID, in.ProjectID, in.Status, nullableStringPtr(in.CurrentStepKey), in.StartedAt, nullableStringPtr(in.EndedAt))
	if err != nil {
		return fmt.Errorf("insert process instance: %w", err)
	}
	return nil
}

func (r Repo) GetInstance(ctx context.Context, tx *sql.Tx, id string) (domain.ProcessInstance, error) {
	in, err := scanInstance(r.on(tx).QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM process_instances WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return in, fmt.Errorf("process instance %s: %w", id, ErrNotFound)
	}
	return in, err
}

// InstanceForProject returns the earliest instance started for a project.
func (r Repo) InstanceForProject(ctx context.Context, tx *sql.Tx, projectID string) (domain.ProcessInstance, error) {
	return scanInstance(r.on(tx).QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM process_instances WHERE project_id=? ORDER BY started_at, id LIMIT 1`, projectID))
}

func (r Repo) UpdateInstance(ctx context.Context, tx *sql.Tx, in domain.ProcessInstance) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE process_instances SET status=?, current_step_key=?, ended_at=? WHERE id=?`,
		in.Status, nullableStringPtr(in.CurrentStepKey), nullableStringPtr(in.EndedAt), in.ID)
	return err
}
