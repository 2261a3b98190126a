package notification

import (
	"context"

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

type interactionRepoPG struct{ pool *pgxpool.Pool }

func NewInteractionRepoPG(pool *pgxpool.Pool) InteractionRepository {
	return &interactionRepoPG{pool: pool}
}

func (r *interactionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const interactionNotificationCols = `id, doctor_id, patient_id, patient_name,
	added_item, interacting_item, severity, description, created_at`

func (r *interactionRepoPG) Create(ctx context.Context, n *InteractionNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO interaction_notifications
			(id, doctor_id, patient_id, patient_name, added_item, interacting_item, severity, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		n.ID, n.DoctorID, n.PatientID, n.PatientName,
		n.AddedItem, n.InteractingItem, n.Severity, n.Description).
		Scan(&n.CreatedAt)
}

func (r *interactionRepoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*InteractionNotification, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM interaction_notifications WHERE doctor_id = $1`, doctorID).
		Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+interactionNotificationCols+`
		FROM interaction_notifications
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*InteractionNotification
	for rows.Next() {
		var n InteractionNotification
		if err := rows.Scan(&n.ID, &n.DoctorID, &n.PatientID, &n.PatientName,
			&n.AddedItem, &n.InteractingItem, &n.Severity, &n.Description, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, rows.Err()
}

func (r *interactionRepoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM interaction_notifications WHERE id = $1 AND doctor_id = $2`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("notification %s not found", id)
	}
	return nil
}

type responseRepoPG struct{ pool *pgxpool.Pool }

func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

func (r *responseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const responseNotificationCols = `id, patient_id, doctor_id, approval_request_id,
	doctor_name, item_name, response_type, doctor_notes, created_at`

func (r *responseRepoPG) Create(ctx context.Context, n *DoctorResponseNotification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_response_notifications
			(id, patient_id, doctor_id, approval_request_id, doctor_name, item_name, response_type, doctor_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		n.ID, n.PatientID, n.DoctorID, n.ApprovalRequestID,
		n.DoctorName, n.ItemName, n.ResponseType, n.DoctorNotes).
		Scan(&n.CreatedAt)
}

func (r *responseRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DoctorResponseNotification, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_response_notifications WHERE patient_id = $1`, patientID).
		Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+responseNotificationCols+`
		FROM doctor_response_notifications
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*DoctorResponseNotification
	for rows.Next() {
		var n DoctorResponseNotification
		if err := rows.Scan(&n.ID, &n.PatientID, &n.DoctorID, &n.ApprovalRequestID,
			&n.DoctorName, &n.ItemName, &n.ResponseType, &n.DoctorNotes, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	return out, total, rows.Err()
}

func (r *responseRepoPG) Delete(ctx context.Context, id, patientID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM doctor_response_notifications WHERE id = $1 AND patient_id = $2`, id, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("notification %s not found", id)
	}
	return nil
}
