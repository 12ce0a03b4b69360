package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/steward/pkg/billing"
	"github.com/Mindburn-Labs/steward/pkg/domain"
)

func marshalList(items []string) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(raw string) ([]string, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *SQLStore) CreatePreview(ctx context.Context, p *billing.Preview) error {
	warnings, err := marshalList(p.Warnings)
	if err != nil {
		return err
	}
	errs, err := marshalList(p.Errors)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO charge_previews
		 (id, owner_id, customer_id, amount_minor, currency, method, due_date, description,
		  valid, warnings, errors, created_at, expires_at, consumed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL)`,
		p.ID, p.OwnerID, p.CustomerID, p.Amount.AmountMinor, p.Amount.Currency,
		p.Method, p.DueDate, p.Description, p.Valid, warnings, errs,
		p.CreatedAt, p.ExpiresAt)
	return err
}

func (s *SQLStore) GetPreview(ctx context.Context, id string) (*billing.Preview, error) {
	var p billing.Preview
	var warnings, errs string
	var consumed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, customer_id, amount_minor, currency, method, due_date, description,
		        valid, warnings, errors, created_at, expires_at, consumed_at
		 FROM charge_previews WHERE id = $1`, id).
		Scan(&p.ID, &p.OwnerID, &p.CustomerID, &p.Amount.AmountMinor, &p.Amount.Currency,
			&p.Method, &p.DueDate, &p.Description, &p.Valid, &warnings, &errs,
			&p.CreatedAt, &p.ExpiresAt, &consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrPreviewNotFound
		}
		return nil, err
	}
	if p.Warnings, err = unmarshalList(warnings); err != nil {
		return nil, fmt.Errorf("store: decode preview warnings: %w", err)
	}
	if p.Errors, err = unmarshalList(errs); err != nil {
		return nil, fmt.Errorf("store: decode preview errors: %w", err)
	}
	if consumed.Valid {
		t := consumed.Time
		p.ConsumedAt = &t
	}
	return &p, nil
}

// ConsumePreviewAndCreateCharge marks the preview consumed and inserts the
// charge in one transaction. The conditional UPDATE is the race arbiter:
// the second of two concurrent consumers matches zero rows.
func (s *SQLStore) ConsumePreviewAndCreateCharge(ctx context.Context, previewID string, charge *domain.Charge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE charge_previews SET consumed_at = $1 WHERE id = $2 AND consumed_at IS NULL`,
		s.clock().UTC(), previewID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM charge_previews WHERE id = $1`, previewID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return billing.ErrPreviewNotFound
		}
		if err != nil {
			return err
		}
		return billing.ErrPreviewConsumed
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO charges
		 (id, owner_id, customer_id, amount_minor, currency, method, due_date, description, preview_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		charge.ID, charge.OwnerID, charge.CustomerID, charge.AmountMinor, charge.Currency,
		charge.Method, charge.DueDate, charge.Description, charge.PreviewID, charge.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}
