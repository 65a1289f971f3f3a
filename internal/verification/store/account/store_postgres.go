package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/platform/sentinel"
	txcontext "vendorkyc/pkg/platform/tx"
)

// PostgresStore persists vendor accounts. Mutations join the ambient
// transaction so the approval and its account side effects commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const accountColumns = `id, email, display_name, is_verified, subscription_tier,
	promotional_expires_at, promotional_record_id, reminder_sent, created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, a *models.Account) error {
	tier := a.Tier
	if tier == "" {
		tier = models.TierFree
	}
	query := `
		INSERT INTO vendor_accounts (id, email, display_name, subscription_tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			updated_at = NOW()`
	_, err := s.q(ctx).ExecContext(ctx, query, uuid.UUID(a.ID), a.Email, a.DisplayName, tier)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, accountID id.VendorID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM vendor_accounts WHERE id = $1`
	a, err := scanAccount(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(accountID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) SetVerified(ctx context.Context, accountID id.VendorID, verified bool) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE vendor_accounts
		SET is_verified = $2,
			updated_at = CASE WHEN is_verified = $2 THEN updated_at ELSE NOW() END
		WHERE id = $1`, uuid.UUID(accountID), verified)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	return requireRow(res, "set verified")
}

// SetPromotionalTier applies the grant unless the same record already
// produced the current promotion.
func (s *PostgresStore) SetPromotionalTier(ctx context.Context, accountID id.VendorID, grant models.PromotionalGrant) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE vendor_accounts
		SET subscription_tier = $2,
			promotional_expires_at = $3,
			promotional_record_id = $4,
			reminder_sent = FALSE,
			updated_at = NOW()
		WHERE id = $1 AND promotional_record_id IS DISTINCT FROM $4`,
		uuid.UUID(accountID), grant.Tier, grant.ExpiresAt, uuid.UUID(grant.RecordID))
	if err != nil {
		return false, fmt.Errorf("set promotional tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set promotional tier rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, accountID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) ListTrialsEnding(ctx context.Context, now time.Time, lead time.Duration) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM vendor_accounts
		WHERE reminder_sent = FALSE
		  AND promotional_expires_at > $1
		  AND promotional_expires_at <= $2
		ORDER BY promotional_expires_at`
	rows, err := s.q(ctx).QueryContext(ctx, query, now, now.Add(lead))
	if err != nil {
		return nil, fmt.Errorf("list trials ending: %w", err)
	}
	defer rows.Close()

	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkReminderSent(ctx context.Context, accountID id.VendorID) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE vendor_accounts SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`,
		uuid.UUID(accountID))
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return requireRow(res, "mark reminder sent")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*models.Account, error) {
	var (
		a         models.Account
		accountID uuid.UUID
		expires   sql.NullTime
		recordID  uuid.NullUUID
	)
	err := row.Scan(&accountID, &a.Email, &a.DisplayName, &a.IsVerified, &a.Tier,
		&expires, &recordID, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.ID = id.VendorID(accountID)
	if expires.Valid {
		t := expires.Time
		a.PromotionalExpiresAt = &t
	}
	if recordID.Valid {
		rid := id.RecordID(recordID.UUID)
		a.PromotionalRecordID = &rid
	}
	return &a, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: account not found: %w", op, sentinel.ErrNotFound)
	}
	return nil
}
