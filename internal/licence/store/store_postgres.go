package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cvl/internal/licence/models"
	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
	txcontext "cvl/pkg/platform/tx"
)

// PostgresStore persists licences in PostgreSQL. Writes join the transaction
// carried in context when one is present, so a status change and its outbox
// event commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) runner(ctx context.Context) dbRunner {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const licenceColumns = `
	id, kind, type_code, status, nomis_id, crn, booking_id, version_of,
	conditional_release_date, actual_release_date, post_recall_release_date,
	licence_expiry_date, topup_supervision_expiry_date,
	sentence_start_date, sentence_end_date, hdc_actual_date, hdc_end_date,
	licence_start_date, conditions,
	created_by, created_at, updated_by, updated_at,
	submitted_by, submitted_at, approved_by, approved_at, status_reason
`

func (s *PostgresStore) Create(ctx context.Context, licence *models.Licence) error {
	conditions, err := json.Marshal(licence.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}

	query := `
		INSERT INTO licence (
			kind, type_code, status, nomis_id, crn, booking_id, version_of,
			conditional_release_date, actual_release_date, post_recall_release_date,
			licence_expiry_date, topup_supervision_expiry_date,
			sentence_start_date, sentence_end_date, hdc_actual_date, hdc_end_date,
			licence_start_date, conditions,
			created_by, created_at, updated_by, updated_at,
			submitted_by, submitted_at, approved_by, approved_at, status_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id
	`
	var id int64
	err = s.runner(ctx).QueryRowContext(ctx, query,
		string(licence.Kind),
		string(licence.TypeCode),
		string(licence.Status),
		licence.NomisID.String(),
		licence.CRN.String(),
		nullInt64(bookingID(licence)),
		nullInt64(versionOf(licence)),
		nullTime(licence.ConditionalReleaseDate),
		nullTime(licence.ActualReleaseDate),
		nullTime(licence.PostRecallReleaseDate),
		nullTime(licence.LicenceExpiryDate),
		nullTime(licence.TopupSupervisionExpiryDate),
		nullTime(licence.SentenceStartDate),
		nullTime(licence.SentenceEndDate),
		nullTime(licence.HomeDetentionCurfewActualDate),
		nullTime(licence.HomeDetentionCurfewEndDate),
		nullTime(licence.LicenceStartDate),
		conditions,
		licence.CreatedBy,
		licence.CreatedAt,
		licence.UpdatedBy,
		licence.UpdatedAt,
		nullString(licence.SubmittedBy),
		nullTime(licence.SubmittedAt),
		nullString(licence.ApprovedBy),
		nullTime(licence.ApprovedAt),
		licence.StatusReason,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("insert licence: %w", err)
	}
	licence.ID = domain.LicenceID(id)
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.LicenceID) (*models.Licence, error) {
	query := `SELECT ` + licenceColumns + ` FROM licence WHERE id = $1`
	licence, err := scanLicence(s.runner(ctx).QueryRowContext(ctx, query, id.Int64()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get licence %s: %w", id, err)
	}
	return licence, nil
}

func (s *PostgresStore) Update(ctx context.Context, licence *models.Licence) error {
	return s.update(ctx, licence, nil)
}

func (s *PostgresStore) UpdateIfStatus(ctx context.Context, licence *models.Licence, expected models.LicenceStatus) error {
	return s.update(ctx, licence, &expected)
}

func (s *PostgresStore) update(ctx context.Context, licence *models.Licence, expected *models.LicenceStatus) error {
	conditions, err := json.Marshal(licence.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}

	query := `
		UPDATE licence SET
			type_code = $2, status = $3,
			conditional_release_date = $4, actual_release_date = $5,
			post_recall_release_date = $6, licence_expiry_date = $7,
			topup_supervision_expiry_date = $8,
			sentence_start_date = $9, sentence_end_date = $10,
			hdc_actual_date = $11, hdc_end_date = $12,
			licence_start_date = $13, conditions = $14,
			updated_by = $15, updated_at = $16,
			submitted_by = $17, submitted_at = $18,
			approved_by = $19, approved_at = $20, status_reason = $21
		WHERE id = $1
	`
	args := []any{
		licence.ID.Int64(),
		string(licence.TypeCode),
		string(licence.Status),
		nullTime(licence.ConditionalReleaseDate),
		nullTime(licence.ActualReleaseDate),
		nullTime(licence.PostRecallReleaseDate),
		nullTime(licence.LicenceExpiryDate),
		nullTime(licence.TopupSupervisionExpiryDate),
		nullTime(licence.SentenceStartDate),
		nullTime(licence.SentenceEndDate),
		nullTime(licence.HomeDetentionCurfewActualDate),
		nullTime(licence.HomeDetentionCurfewEndDate),
		nullTime(licence.LicenceStartDate),
		conditions,
		licence.UpdatedBy,
		licence.UpdatedAt,
		nullString(licence.SubmittedBy),
		nullTime(licence.SubmittedAt),
		nullString(licence.ApprovedBy),
		nullTime(licence.ApprovedAt),
		licence.StatusReason,
	}
	if expected != nil {
		query += ` AND status = $22`
		args = append(args, string(*expected))
	}

	result, err := s.runner(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update licence %s: %w", licence.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update licence %s: %w", licence.ID, err)
	}
	if affected == 0 {
		if expected == nil {
			return sentinel.ErrNotFound
		}
		// Distinguish a missing row from a row whose status moved on.
		var exists bool
		check := s.runner(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM licence WHERE id = $1)`, licence.ID.Int64())
		if err := check.Scan(&exists); err != nil {
			return fmt.Errorf("update licence %s: %w", licence.ID, err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleStatus
	}
	return nil
}

func (s *PostgresStore) FindByStatusIn(ctx context.Context, statuses ...models.LicenceStatus) ([]*models.Licence, error) {
	raw := make([]string, len(statuses))
	for i, status := range statuses {
		raw[i] = string(status)
	}
	query := `SELECT ` + licenceColumns + ` FROM licence WHERE status = ANY($1) ORDER BY id`
	return s.queryLicences(ctx, query, pq.Array(raw))
}

func (s *PostgresStore) FindByNomisIDs(ctx context.Context, nomisIDs []domain.NomisID) ([]*models.Licence, error) {
	if len(nomisIDs) == 0 {
		return nil, nil
	}
	raw := make([]string, len(nomisIDs))
	for i, id := range nomisIDs {
		raw[i] = id.String()
	}
	query := `SELECT ` + licenceColumns + ` FROM licence WHERE nomis_id = ANY($1) ORDER BY id`
	return s.queryLicences(ctx, query, pq.Array(raw))
}

func (s *PostgresStore) FindByCRN(ctx context.Context, crn domain.CRN) ([]*models.Licence, error) {
	query := `SELECT ` + licenceColumns + ` FROM licence WHERE crn = $1 ORDER BY id`
	return s.queryLicences(ctx, query, crn.String())
}

func (s *PostgresStore) ListIDsBefore(ctx context.Context, cursor domain.LicenceID, limit int) ([]domain.LicenceID, error) {
	query := `SELECT id FROM licence WHERE ($1 = 0 OR id < $1) ORDER BY id DESC LIMIT $2`
	rows, err := s.runner(ctx).QueryContext(ctx, query, cursor.Int64(), limit)
	if err != nil {
		return nil, fmt.Errorf("list licence ids: %w", err)
	}
	defer rows.Close()

	var ids []domain.LicenceID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan licence id: %w", err)
		}
		ids = append(ids, domain.LicenceID(id))
	}
	return ids, rows.Err()
}

func (s *PostgresStore) queryLicences(ctx context.Context, query string, args ...any) ([]*models.Licence, error) {
	rows, err := s.runner(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query licences: %w", err)
	}
	defer rows.Close()

	var out []*models.Licence
	for rows.Next() {
		licence, err := scanLicence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan licence: %w", err)
		}
		out = append(out, licence)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicence(row rowScanner) (*models.Licence, error) {
	var (
		licence    models.Licence
		id         int64
		kind       string
		typeCode   string
		status     string
		nomisID    string
		crn        string
		booking    sql.NullInt64
		versionOf  sql.NullInt64
		crd        sql.NullTime
		ard        sql.NullTime
		prrd       sql.NullTime
		led        sql.NullTime
		tused      sql.NullTime
		ssd        sql.NullTime
		sed        sql.NullTime
		hdcad      sql.NullTime
		hdcEnd     sql.NullTime
		lsd        sql.NullTime
		conditions []byte
		submitBy   sql.NullString
		submitAt   sql.NullTime
		approveBy  sql.NullString
		approveAt  sql.NullTime
	)
	err := row.Scan(
		&id, &kind, &typeCode, &status, &nomisID, &crn, &booking, &versionOf,
		&crd, &ard, &prrd, &led, &tused, &ssd, &sed, &hdcad, &hdcEnd, &lsd,
		&conditions,
		&licence.CreatedBy, &licence.CreatedAt, &licence.UpdatedBy, &licence.UpdatedAt,
		&submitBy, &submitAt, &approveBy, &approveAt, &licence.StatusReason,
	)
	if err != nil {
		return nil, err
	}

	licence.ID = domain.LicenceID(id)
	licence.Kind = models.LicenceKind(kind)
	licence.TypeCode = models.LicenceType(typeCode)
	licence.Status = models.LicenceStatus(status)
	licence.NomisID = domain.NomisID(nomisID)
	licence.CRN = domain.CRN(crn)
	if booking.Valid {
		licence.BookingID = domain.BookingID(booking.Int64)
	}
	if versionOf.Valid {
		original := domain.LicenceID(versionOf.Int64)
		licence.VersionOf = &original
	}
	licence.ConditionalReleaseDate = timePtr(crd)
	licence.ActualReleaseDate = timePtr(ard)
	licence.PostRecallReleaseDate = timePtr(prrd)
	licence.LicenceExpiryDate = timePtr(led)
	licence.TopupSupervisionExpiryDate = timePtr(tused)
	licence.SentenceStartDate = timePtr(ssd)
	licence.SentenceEndDate = timePtr(sed)
	licence.HomeDetentionCurfewActualDate = timePtr(hdcad)
	licence.HomeDetentionCurfewEndDate = timePtr(hdcEnd)
	licence.LicenceStartDate = timePtr(lsd)
	licence.SubmittedBy = stringPtr(submitBy)
	licence.SubmittedAt = timePtr(submitAt)
	licence.ApprovedBy = stringPtr(approveBy)
	licence.ApprovedAt = timePtr(approveAt)

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &licence.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}
	return &licence, nil
}

func bookingID(licence *models.Licence) *int64 {
	if licence.BookingID == 0 {
		return nil
	}
	v := int64(licence.BookingID)
	return &v
}

func versionOf(licence *models.Licence) *int64 {
	if licence.VersionOf == nil {
		return nil
	}
	v := licence.VersionOf.Int64()
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
