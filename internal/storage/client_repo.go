package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"supportbot/internal/models"
	"supportbot/internal/rag"
	"supportbot/internal/util"
)

// ClientRepo stores end customers and their conversation turns.
type ClientRepo struct {
	db *DB
}

func NewClientRepo(db *DB) *ClientRepo {
	return &ClientRepo{db: db}
}

func (r *ClientRepo) GetOrCreateClient(ctx context.Context, tenantID, phone, name string) (models.Client, error) {
	var c models.Client
	var profile []byte
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO clients (tenant_id, phone, name)
VALUES ($1::uuid, $2, $3)
ON CONFLICT (tenant_id, phone)
DO UPDATE SET name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE clients.name END
RETURNING client_id::text, tenant_id::text, phone, name, summary, profile, last_interaction, created_at`,
		tenantID, phone, name).
		Scan(&c.ClientID, &c.TenantID, &c.Phone, &c.Name, &c.Summary, &profile, &c.LastInteraction, &c.CreatedAt)
	if err != nil {
		return models.Client{}, fmt.Errorf("upsert client: %w", err)
	}
	if err := json.Unmarshal(profile, &c.Profile); err != nil {
		return models.Client{}, fmt.Errorf("decode client profile: %w", err)
	}
	return c, nil
}

// RecentTurns returns the last n turns, oldest first.
func (r *ClientRepo) RecentTurns(ctx context.Context, clientID string, n int) ([]models.Turn, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT sender, message, created_at FROM (
  SELECT message_id, sender, message, created_at
  FROM conversations
  WHERE client_id = $1::uuid
  ORDER BY message_id DESC
  LIMIT $2
) recent
ORDER BY message_id ASC`, clientID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent turns: %w", err)
	}
	defer rows.Close()
	out := make([]models.Turn, 0, n)
	for rows.Next() {
		var t models.Turn
		var sender string
		if err := rows.Scan(&sender, &t.Message, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Sender = models.Sender(sender)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return out, nil
}

func (r *ClientRepo) AppendTurn(ctx context.Context, clientID string, sender models.Sender, message string) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO conversations (client_id, sender, message) VALUES ($1::uuid, $2, $3)`,
		clientID, string(sender), util.SanitizeText(message))
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (r *ClientRepo) UpdateSummary(ctx context.Context, clientID, summary string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE clients SET summary = $2, last_interaction = now() WHERE client_id = $1::uuid`, clientID, summary)
	if err != nil {
		return fmt.Errorf("update client summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &rag.NotFoundError{Kind: "client", ID: clientID}
	}
	return nil
}

// UpdateProfile applies fn to the stored profile inside a row lock.
func (r *ClientRepo) UpdateProfile(ctx context.Context, clientID string, fn func(p *models.ClientProfile)) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx update profile: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	var raw []byte
	err = tx.QueryRow(ctx, `SELECT profile FROM clients WHERE client_id = $1::uuid FOR UPDATE`, clientID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return &rag.NotFoundError{Kind: "client", ID: clientID}
	}
	if err != nil {
		return fmt.Errorf("load client profile: %w", err)
	}
	var p models.ClientProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("decode client profile: %w", err)
	}
	fn(&p)
	updated, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode client profile: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE clients SET profile = $2 WHERE client_id = $1::uuid`, clientID, updated); err != nil {
		return fmt.Errorf("update client profile: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit profile tx: %w", err)
	}
	return nil
}
