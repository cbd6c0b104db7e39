package storage

import (
	"context"
	"fmt"

	"supportbot/internal/models"
	"supportbot/internal/rag"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

func (r *LLMAuditRepo) RecordCall(ctx context.Context, rec rag.CallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, tenant_id, document_id, provider_name, model, status, error_type)
VALUES ($1, NULLIF($2,'')::uuid, NULLIF($3,'')::uuid, $4, $5, $6, NULLIF($7,''))`,
		rec.Operation, rec.TenantID, rec.DocumentID, rec.Provider, rec.Model, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// CallStats aggregates audit rows for one tenant.
func (r *LLMAuditRepo) CallStats(ctx context.Context, tenantID string) ([]models.CallStat, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT operation, provider_name, status, COUNT(*)
FROM llm_calls
WHERE tenant_id = $1::uuid
GROUP BY operation, provider_name, status
ORDER BY operation, provider_name, status`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query llm call stats: %w", err)
	}
	defer rows.Close()
	out := make([]models.CallStat, 0)
	for rows.Next() {
		var s models.CallStat
		if err := rows.Scan(&s.Operation, &s.Provider, &s.Status, &s.Count); err != nil {
			return nil, fmt.Errorf("scan llm call stat: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm call stats: %w", err)
	}
	return out, nil
}
