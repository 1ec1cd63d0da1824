package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UploadAudit is one row of the upload history.
type UploadAudit struct {
	ID          int64     `json:"id"`
	OperationID string    `json:"operation_id"`
	EntityCode  string    `json:"entity_code"`
	Month       string    `json:"month"`
	YearLabel   string    `json:"financial_year"`
	FileName    string    `json:"file_name"`
	DocumentURL string    `json:"document_url,omitempty"`
	NewCompany  bool      `json:"new_company"`
	TotalRows   int       `json:"total_rows"`
	Inserted    int       `json:"inserted"`
	Duplicates  int       `json:"duplicates"`
	Failed      int       `json:"failed"`
	Success     bool      `json:"success"`
	Message     string    `json:"message,omitempty"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuditRepository interface {
	Record(ctx context.Context, a UploadAudit) (UploadAudit, error)
	List(ctx context.Context, entityCode string, limit int) ([]UploadAudit, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

const auditColumns = `id, operation_id, entity_code, month, financial_year, file_name, document_url,
    new_company, total_rows, inserted, duplicates, failed, success, message, uploaded_by, created_at`

func (r *auditRepository) Record(ctx context.Context, a UploadAudit) (UploadAudit, error) {
	const query = `
INSERT INTO upload_audit (operation_id, entity_code, month, financial_year, file_name, document_url,
    new_company, total_rows, inserted, duplicates, failed, success, message, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		a.OperationID, a.EntityCode, a.Month, a.YearLabel, a.FileName, a.DocumentURL,
		a.NewCompany, a.TotalRows, a.Inserted, a.Duplicates, a.Failed, a.Success, a.Message,
		a.UploadedBy,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return UploadAudit{}, err
	}
	return a, nil
}

func (r *auditRepository) List(ctx context.Context, entityCode string, limit int) ([]UploadAudit, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT ` + auditColumns + ` FROM upload_audit`
	args := []any{}
	if entityCode != "" {
		query += ` WHERE LOWER(BTRIM(entity_code)) = LOWER(BTRIM($1))`
		args = append(args, entityCode)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + limitPlaceholder(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAudits(rows)
}

func limitPlaceholder(n int) string {
	if n == 1 {
		return "$1"
	}
	return "$2"
}

func scanAudits(rows pgx.Rows) ([]UploadAudit, error) {
	var out []UploadAudit
	for rows.Next() {
		var a UploadAudit
		if err := rows.Scan(&a.ID, &a.OperationID, &a.EntityCode, &a.Month, &a.YearLabel,
			&a.FileName, &a.DocumentURL, &a.NewCompany, &a.TotalRows, &a.Inserted,
			&a.Duplicates, &a.Failed, &a.Success, &a.Message, &a.UploadedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
