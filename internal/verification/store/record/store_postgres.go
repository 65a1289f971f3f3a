package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vendorkyc/internal/verification/models"
	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/platform/sentinel"
	txcontext "vendorkyc/pkg/platform/tx"
)

// Postgres error codes the store translates into sentinels.
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// PostgresStore persists identity records. It is pure I/O; state rules live
// on the model and in the service. The partial unique index on approved id
// numbers and the freeze trigger back the invariants at the database level.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `
	id, vendor_id, id_type, id_number, extracted_name, extracted_dob,
	document_front_ref, document_back_ref, selfie_ref, face_match_score,
	face_match_status, document_valid, is_live_selfie, risk_score, status,
	rejection_reason, reviewed_by, reviewed_at, review_note, decided_at,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.IdentityRecord) error {
	query := `INSERT INTO identity_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`
	_, err := s.q(ctx).ExecContext(ctx, query, recordArgs(rec)...)
	if err != nil {
		return translate("create identity record", err)
	}
	return nil
}

// Get locks the row for update when called inside a transaction.
func (s *PostgresStore) Get(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM identity_records WHERE id = $1`
	if _, inTx := txcontext.From(ctx); inTx {
		query += ` FOR UPDATE`
	}
	rec, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(recordID)))
	if err != nil {
		return nil, translate("get identity record", err)
	}
	return rec, nil
}

func (s *PostgresStore) Latest(ctx context.Context, vendorID id.VendorID) (*models.IdentityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM identity_records
		WHERE vendor_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	rec, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(vendorID)))
	if err != nil {
		return nil, translate("latest identity record", err)
	}
	return rec, nil
}

// Update is a compare-and-swap on status.
func (s *PostgresStore) Update(ctx context.Context, rec *models.IdentityRecord, expected models.RecordStatus) error {
	query := `
		UPDATE identity_records SET
			vendor_id = $2, id_type = $3, id_number = $4, extracted_name = $5, extracted_dob = $6,
			document_front_ref = $7, document_back_ref = $8, selfie_ref = $9, face_match_score = $10,
			face_match_status = $11, document_valid = $12, is_live_selfie = $13, risk_score = $14,
			status = $15, rejection_reason = $16, reviewed_by = $17, reviewed_at = $18,
			review_note = $19, decided_at = $20, created_at = $21, updated_at = $22
		WHERE id = $1 AND status = $23`
	args := append(recordArgs(rec), string(expected))
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return translate("update identity record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity record rows affected: %w", err)
	}
	if n == 0 {
		var exists bool
		err := s.q(ctx).QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM identity_records WHERE id = $1)`,
			uuid.UUID(rec.ID)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update identity record existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("identity record not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("identity record no longer %s: %w", expected, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) FindApprovedByIDNumber(ctx context.Context, idNumber string, exclude id.VendorID) (*models.IdentityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM identity_records
		WHERE status = 'approved' AND id_number = $1 AND vendor_id <> $2
		LIMIT 1`
	rec, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, idNumber, uuid.UUID(exclude)))
	if err != nil {
		return nil, translate("find approved identity record", err)
	}
	return rec, nil
}

func recordArgs(r *models.IdentityRecord) []any {
	return []any{
		uuid.UUID(r.ID),
		uuid.UUID(r.VendorID),
		string(r.IDType),
		r.IDNumber,
		r.ExtractedName,
		nullTime(r.ExtractedDateOfBirth),
		r.DocumentFrontRef,
		r.DocumentBackRef,
		r.SelfieRef,
		nullFloat(r.FaceMatchScore),
		string(r.FaceMatchStatus),
		r.DocumentValid,
		r.IsLiveSelfie,
		nullFloat(r.RiskScore),
		string(r.Status),
		r.RejectionReason,
		r.ReviewedBy,
		nullTime(r.ReviewedAt),
		r.ReviewNote,
		nullTime(r.DecidedAt),
		r.CreatedAt,
		r.UpdatedAt,
	}
}

func scanRecord(row *sql.Row) (*models.IdentityRecord, error) {
	var (
		r                          models.IdentityRecord
		recID, vendorID            uuid.UUID
		idType, faceStatus, status string
		dob, reviewedAt, decidedAt sql.NullTime
		faceScore, riskScore       sql.NullFloat64
	)
	err := row.Scan(
		&recID, &vendorID, &idType, &r.IDNumber, &r.ExtractedName, &dob,
		&r.DocumentFrontRef, &r.DocumentBackRef, &r.SelfieRef, &faceScore,
		&faceStatus, &r.DocumentValid, &r.IsLiveSelfie, &riskScore, &status,
		&r.RejectionReason, &r.ReviewedBy, &reviewedAt, &r.ReviewNote, &decidedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.RecordID(recID)
	r.VendorID = id.VendorID(vendorID)
	r.IDType = models.IDType(idType)
	r.FaceMatchStatus = models.FaceMatchStatus(faceStatus)
	r.Status = models.RecordStatus(status)
	r.ExtractedDateOfBirth = timePtr(dob)
	r.ReviewedAt = timePtr(reviewedAt)
	r.DecidedAt = timePtr(decidedAt)
	r.FaceMatchScore = floatPtr(faceScore)
	r.RiskScore = floatPtr(riskScore)
	return &r, nil
}

func translate(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pqErr.Constraint, sentinel.ErrConflict)
		case pqCheckViolation:
			return fmt.Errorf("%s: %s: %w", op, pqErr.Message, sentinel.ErrInvalidState)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
