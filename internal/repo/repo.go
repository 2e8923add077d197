package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"opsportal/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on returns tx when set, the pool otherwise. Reads inside a transaction must
// go through tx: the pool holds a single connection.
func (r Repo) on(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

const leadColumns = `id,name,COALESCE(email,''),COALESCE(phone,''),COALESCE(company,''),COALESCE(message,''),COALESCE(service,''),
COALESCE(tech_preferences,''),COALESCE(estimated_budget,''),source,COALESCE(srs_url,''),COALESCE(target_platforms,''),status,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (domain.Lead, error) {
	var l domain.Lead
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Company, &l.Message, &l.Service,
		&l.TechPreferences, &l.EstimatedBudget, &l.Source, &l.SrsURL, &l.TargetPlatforms, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

func (r Repo) InsertLead(ctx context.Context, tx *sql.Tx, l domain.Lead) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO leads(id,name,email,phone,company,message,service,tech_preferences,estimated_budget,source,srs_url,target_platforms,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.Name, nullable(l.Email), nullable(l.Phone), nullable(l.Company), nullable(l.Message), nullable(l.Service),
		nullable(l.TechPreferences), nullable(l.EstimatedBudget), l.Source, nullable(l.SrsURL), nullable(l.TargetPlatforms), l.Status, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (r Repo) GetLead(ctx context.Context, id string) (domain.Lead, error) {
	return r.GetLeadTx(ctx, nil, id)
}

func (r Repo) GetLeadTx(ctx context.Context, tx *sql.Tx, id string) (domain.Lead, error) {
	l, err := scanLead(r.on(tx).QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return l, fmt.Errorf("lead %s: %w", id, ErrNotFound)
	}
	return l, err
}

type LeadFilters struct {
	Status string
	Limit  int
}

func (r Repo) ListLeads(ctx context.Context, f LeadFilters) ([]domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if f.Status != "" {
		query += ` WHERE status=?`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// SetLeadStatusIf moves a lead from one status to another only if it still
// holds the expected status. It reports whether a row changed.
func (r Repo) SetLeadStatusIf(ctx context.Context, tx *sql.Tx, id, from, to, now string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE leads SET status=?, updated_at=? WHERE id=? AND status=?`, to, now, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkLeadConverted flips any non-converted lead to converted.
func (r Repo) MarkLeadConverted(ctx context.Context, tx *sql.Tx, id, now string) (bool, error) {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE leads SET status='converted', updated_at=? WHERE id=? AND status!='converted'`, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

const projectColumns = `id,lead_id,name,owner_user_id,status,priority,start_at,due_at,created_at,updated_at`

func scanProject(row rowScanner) (domain.Project, error) {
	var p domain.Project
	var leadID, owner, startAt, dueAt sql.NullString
	err := row.Scan(&p.ID, &leadID, &p.Name, &owner, &p.Status, &p.Priority, &startAt, &dueAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.LeadID = fromNull(leadID)
	p.OwnerUserID = fromNull(owner)
	p.StartAt = fromNull(startAt)
	p.DueAt = fromNull(dueAt)
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		p.ID, nullableStringPtr(p.LeadID), p.Name, nullableStringPtr(p.OwnerUserID), p.Status, p.Priority,
		nullableStringPtr(p.StartAt), nullableStringPtr(p.DueAt), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return r.GetProjectTx(ctx, nil, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	p, err := scanProject(r.on(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if errors.Is(err, ErrNotFound) {
		return p, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ProjectForLead returns the project created when the lead was converted.
func (r Repo) ProjectForLead(ctx context.Context, tx *sql.Tx, leadID string) (domain.Project, error) {
	p, err := scanProject(r.on(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE lead_id=?`, leadID))
	if errors.Is(err, ErrNotFound) {
		return p, fmt.Errorf("project for lead %s: %w", leadID, ErrNotFound)
	}
	return p, err
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
