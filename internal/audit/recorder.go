package audit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder persists ledger entries into the audit_entries table. It is an
// optional durable sink behind the in-memory ledger; the table mirrors the
// entry fields one to one.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a Recorder backed by the given pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record inserts the entry. Entries are immutable, so conflicts on the
// entry id are ignored.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit recorder not initialised")
	}
	if entry.Kind == "" || entry.Action == "" {
		return errors.New("audit entry requires kind and action")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_entries (id, actor_id, actor_name, actor_email, project_id, kind, action, detail, impact, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.Actor.ID, entry.Actor.Name, entry.Actor.Email, entry.ProjectID,
		string(entry.Kind), entry.Action, entry.Detail, string(entry.Impact), entry.At)
	return err
}
