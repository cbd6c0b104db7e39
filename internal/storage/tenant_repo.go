package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

type TenantRepo struct {
	db *DB
}

func NewTenantRepo(db *DB) *TenantRepo {
	return &TenantRepo{db: db}
}

const tenantColumns = `tenant_id::text, name, whatsapp_number, custom_prompt, owner_number, active, created_at`

func scanTenant(row pgx.Row) (models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.TenantID, &t.Name, &t.WhatsAppNumber, &t.CustomPrompt, &t.OwnerNumber, &t.Active, &t.CreatedAt)
	return t, err
}

func (r *TenantRepo) CreateTenant(ctx context.Context, t models.Tenant) (models.Tenant, error) {
	if strings.TrimSpace(t.Name) == "" {
		return models.Tenant{}, &rag.ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(t.WhatsAppNumber) == "" {
		return models.Tenant{}, &rag.ValidationError{Field: "whatsapp_number", Reason: "required"}
	}
	out, err := scanTenant(r.db.Pool.QueryRow(ctx, `
INSERT INTO tenants (name, whatsapp_number, custom_prompt, owner_number, active)
VALUES ($1, $2, $3, $4, true)
RETURNING `+tenantColumns,
		t.Name, t.WhatsAppNumber, t.CustomPrompt, t.OwnerNumber))
	if isUniqueViolation(err) {
		return models.Tenant{}, rag.ErrTenantExists
	}
	if err != nil {
		return models.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	return out, nil
}

func (r *TenantRepo) GetTenant(ctx context.Context, tenantID string) (models.Tenant, error) {
	t, err := scanTenant(r.db.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE tenant_id = $1::uuid`, tenantID))
	if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
		return models.Tenant{}, &rag.NotFoundError{Kind: "tenant", ID: tenantID}
	}
	if err != nil {
		return models.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return t, nil
}

// GetTenantByWhatsApp resolves the business that owns an inbound number.
// Inactive tenants are not returned.
func (r *TenantRepo) GetTenantByWhatsApp(ctx context.Context, number string) (models.Tenant, error) {
	t, err := scanTenant(r.db.Pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE whatsapp_number = $1 AND active`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Tenant{}, &rag.NotFoundError{Kind: "tenant", ID: number}
	}
	if err != nil {
		return models.Tenant{}, fmt.Errorf("get tenant by whatsapp: %w", err)
	}
	return t, nil
}

func (r *TenantRepo) SetActive(ctx context.Context, tenantID string, active bool) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE tenants SET active = $2 WHERE tenant_id = $1::uuid`, tenantID, active)
	if isInvalidUUID(err) {
		return &rag.NotFoundError{Kind: "tenant", ID: tenantID}
	}
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &rag.NotFoundError{Kind: "tenant", ID: tenantID}
	}
	return nil
}
