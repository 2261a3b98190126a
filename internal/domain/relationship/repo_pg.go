package relationship

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// conflictOnUnique translates a unique-constraint violation into the
// conflict the caller would have reported had it seen the duplicate first.
// Concurrent inserts for the same pair both pass the pre-checks; the loser
// lands here.
func conflictOnUnique(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.Conflict(msg)
	}
	return err
}

// =========== Request Repository ===========

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, requester_id, recipient_id, request_type, status, created_at, updated_at`

func (r *requestRepoPG) scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.RequesterID, &req.RecipientID, &req.RequestType,
		&req.Status, &req.CreatedAt, &req.UpdatedAt)
	return &req, err
}

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	req.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_patient_requests (id, requester_id, recipient_id, request_type, status)
		VALUES ($1,$2,$3,$4,$5)`,
		req.ID, req.RequesterID, req.RecipientID, req.RequestType, req.Status)
	return conflictOnUnique(err, "a request between these users already exists")
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := r.scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM doctor_patient_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("request not found")
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_patient_requests SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	return err
}

func (r *requestRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_patient_requests WHERE id = $1`, id)
	return err
}

func (r *requestRepoPG) FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*Request, error) {
	req, err := r.scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM doctor_patient_requests
		WHERE status = 'pending'
		  AND ((requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1))
		LIMIT 1`, a, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) FindRejected(ctx context.Context, requesterID, recipientID uuid.UUID) (*Request, error) {
	req, err := r.scanRequest(r.conn(ctx).QueryRow(ctx, `
		SELECT `+requestCols+` FROM doctor_patient_requests
		WHERE status = 'rejected' AND requester_id = $1 AND recipient_id = $2`,
		requesterID, recipientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) DeleteBetween(ctx context.Context, a, b uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM doctor_patient_requests
		WHERE (requester_id = $1 AND recipient_id = $2) OR (requester_id = $2 AND recipient_id = $1)`,
		a, b)
	return err
}

func (r *requestRepoPG) ListIncoming(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return r.listFor(ctx, "recipient_id", userID, limit, offset)
}

func (r *requestRepoPG) ListOutgoing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return r.listFor(ctx, "requester_id", userID, limit, offset)
}

func (r *requestRepoPG) listFor(ctx context.Context, column string, userID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_patient_requests WHERE `+column+` = $1 AND status = 'pending'`,
		userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT r.id, r.requester_id, r.recipient_id, r.request_type, r.status,
		       r.created_at, r.updated_at, req.full_name, rec.full_name
		FROM doctor_patient_requests r
		JOIN users req ON req.id = r.requester_id
		JOIN users rec ON rec.id = r.recipient_id
		WHERE r.`+column+` = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.RequesterID, &req.RecipientID, &req.RequestType,
			&req.Status, &req.CreatedAt, &req.UpdatedAt,
			&req.RequesterName, &req.RecipientName); err != nil {
			return nil, 0, err
		}
		items = append(items, &req)
	}
	return items, total, nil
}

// =========== Relationship Repository ===========

type relationshipRepoPG struct{ pool *pgxpool.Pool }

func NewRelationshipRepoPG(pool *pgxpool.Pool) RelationshipRepository {
	return &relationshipRepoPG{pool: pool}
}

func (r *relationshipRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const relationshipCols = `id, doctor_id, patient_id, is_primary_doctor, created_at`

func (r *relationshipRepoPG) scanRelationship(row pgx.Row) (*Relationship, error) {
	var rel Relationship
	err := row.Scan(&rel.ID, &rel.DoctorID, &rel.PatientID, &rel.IsPrimaryDoctor, &rel.CreatedAt)
	return &rel, err
}

func (r *relationshipRepoPG) Create(ctx context.Context, rel *Relationship) error {
	rel.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_patient_relationships (id, doctor_id, patient_id, is_primary_doctor)
		VALUES ($1,$2,$3,$4)`,
		rel.ID, rel.DoctorID, rel.PatientID, rel.IsPrimaryDoctor)
	return conflictOnUnique(err, "these users are already connected")
}

func (r *relationshipRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Relationship, error) {
	rel, err := r.scanRelationship(r.conn(ctx).QueryRow(ctx,
		`SELECT `+relationshipCols+` FROM doctor_patient_relationships WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("relationship not found")
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *relationshipRepoPG) FindBetweenUsers(ctx context.Context, a, b uuid.UUID) (*Relationship, error) {
	rel, err := r.scanRelationship(r.conn(ctx).QueryRow(ctx, `
		SELECT `+relationshipCols+` FROM doctor_patient_relationships
		WHERE (doctor_id = $1 AND patient_id = $2) OR (doctor_id = $2 AND patient_id = $1)
		LIMIT 1`, a, b))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *relationshipRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor_patient_relationships WHERE id = $1`, id)
	return err
}

func (r *relationshipRepoPG) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Relationship, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_patient_relationships WHERE doctor_id = $1`,
		doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT rel.id, rel.doctor_id, rel.patient_id, rel.is_primary_doctor, rel.created_at,
		       d.full_name, p.full_name
		FROM doctor_patient_relationships rel
		JOIN users d ON d.id = rel.doctor_id
		JOIN users p ON p.id = rel.patient_id
		WHERE rel.doctor_id = $1
		ORDER BY p.full_name LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanRelationshipsWithNames(rows, total)
}

func (r *relationshipRepoPG) ListDoctors(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Relationship, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_patient_relationships WHERE patient_id = $1`,
		patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT rel.id, rel.doctor_id, rel.patient_id, rel.is_primary_doctor, rel.created_at,
		       d.full_name, p.full_name
		FROM doctor_patient_relationships rel
		JOIN users d ON d.id = rel.doctor_id
		JOIN users p ON p.id = rel.patient_id
		WHERE rel.patient_id = $1
		ORDER BY rel.is_primary_doctor DESC, d.full_name LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return scanRelationshipsWithNames(rows, total)
}

func scanRelationshipsWithNames(rows pgx.Rows, total int) ([]*Relationship, int, error) {
	var items []*Relationship
	for rows.Next() {
		var rel Relationship
		if err := rows.Scan(&rel.ID, &rel.DoctorID, &rel.PatientID, &rel.IsPrimaryDoctor,
			&rel.CreatedAt, &rel.DoctorName, &rel.PatientName); err != nil {
			return nil, 0, err
		}
		items = append(items, &rel)
	}
	return items, total, nil
}

func (r *relationshipRepoPG) ListDoctorIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT doctor_id FROM doctor_patient_relationships WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *relationshipRepoPG) GetPrimaryDoctor(ctx context.Context, patientID uuid.UUID) (*Relationship, error) {
	var rel Relationship
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT rel.id, rel.doctor_id, rel.patient_id, rel.is_primary_doctor, rel.created_at, d.full_name
		FROM doctor_patient_relationships rel
		JOIN users d ON d.id = rel.doctor_id
		WHERE rel.patient_id = $1 AND rel.is_primary_doctor = TRUE`, patientID).
		Scan(&rel.ID, &rel.DoctorID, &rel.PatientID, &rel.IsPrimaryDoctor,
			&rel.CreatedAt, &rel.DoctorName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *relationshipRepoPG) ClearPrimary(ctx context.Context, patientID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_patient_relationships SET is_primary_doctor = FALSE
		WHERE patient_id = $1 AND is_primary_doctor = TRUE`, patientID)
	return err
}

func (r *relationshipRepoPG) SetPrimary(ctx context.Context, relationshipID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_patient_relationships SET is_primary_doctor = TRUE WHERE id = $1`,
		relationshipID)
	return err
}
