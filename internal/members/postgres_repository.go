// internal/members/postgres_repository.go
package members

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"barternexus/internal/market"
	"barternexus/pkg/eventstore"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Schema creates the members read model.
const Schema = `
CREATE TABLE IF NOT EXISTS members (
	id UUID PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	version INT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS credentials (
	member_id UUID PRIMARY KEY REFERENCES members (id),
	password_hash TEXT NOT NULL,
	salt TEXT NOT NULL
);
`

type postgresRepository struct {
	db     *sqlx.DB
	events *eventstore.EventStore
}

// NewPostgresRepository stores members in Postgres and their registration
// events in the shared event store.
func NewPostgresRepository(db *sqlx.DB, events *eventstore.EventStore) Repository {
	return &postgresRepository{db: db, events: events}
}

// Migrate creates the members and event tables when they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create members schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, eventstore.Schema); err != nil {
		return fmt.Errorf("create event schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) Create(ctx context.Context, member *Member, credential *Credential) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO members (id, email, name, status, version, created_at, updated_at)
		VALUES (:id, :email, :name, :status, :version, :created_at, :updated_at)
	`, member)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO credentials (member_id, password_hash, salt)
		VALUES (:member_id, :password_hash, :salt)
	`, credential)
	if err != nil {
		return err
	}

	data, err := json.Marshal(MemberRegisteredEvent{ID: member.ID, Email: member.Email, Name: member.Name})
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	event := eventstore.Event{EventType: "MemberRegistered", EventData: data, CreatedAt: member.CreatedAt}
	if _, err := r.events.AppendTx(ctx, tx.Tx, member.ID, "member", []eventstore.Event{event}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}

	return tx.Commit()
}

func (r *postgresRepository) ByEmail(ctx context.Context, email string) (*Member, *Credential, error) {
	member := &Member{}
	err := r.db.GetContext(ctx, member, `
		SELECT id, email, name, status, version, created_at, updated_at
		FROM members
		WHERE email = $1
	`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: member", market.ErrNotFound)
	}
	if err != nil {
		return nil, nil, err
	}

	credential := &Credential{}
	err = r.db.GetContext(ctx, credential, `
		SELECT member_id, password_hash, salt
		FROM credentials
		WHERE member_id = $1
	`, member.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("load credential: %w", err)
	}
	return member, credential, nil
}

func (r *postgresRepository) ByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	member := &Member{}
	err := r.db.GetContext(ctx, member, `
		SELECT id, email, name, status, version, created_at, updated_at
		FROM members
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %s", market.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member from read model: %w", err)
	}
	return member, nil
}
