package approval

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplemate/api/internal/domain/interaction"
	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Item Repository ===========

type itemRepoPG struct{ pool *pgxpool.Pool }

func NewItemRepoPG(pool *pgxpool.Pool) ItemRepository {
	return &itemRepoPG{pool: pool}
}

func (r *itemRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const itemCols = `id, user_id, name, dosage, frequency_value, frequency_unit,
	first_take, supply_amount, type, approval_status, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.UserID, &it.Name, &it.Dosage,
		&it.Frequency.Value, &it.Frequency.Unit, &it.FirstTake, &it.SupplyAmount,
		&it.Type, &it.ApprovalStatus, &it.CreatedAt, &it.UpdatedAt)
	return &it, err
}

func (r *itemRepoPG) Create(ctx context.Context, item *Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO items
			(id, user_id, name, dosage, frequency_value, frequency_unit,
			 first_take, supply_amount, type, approval_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		item.ID, item.UserID, item.Name, item.Dosage,
		item.Frequency.Value, item.Frequency.Unit, item.FirstTake,
		item.SupplyAmount, item.Type, item.ApprovalStatus).
		Scan(&item.CreatedAt, &item.UpdatedAt)
}

func (r *itemRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	it, err := scanItem(r.conn(ctx).QueryRow(ctx,
		`SELECT `+itemCols+` FROM items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("item not found")
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (r *itemRepoPG) Update(ctx context.Context, item *Item) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE items
		SET dosage = $2, frequency_value = $3, frequency_unit = $4,
		    first_take = $5, supply_amount = $6, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.Dosage, item.Frequency.Value, item.Frequency.Unit,
		item.FirstTake, item.SupplyAmount)
	return err
}

func (r *itemRepoPG) UpdateApprovalStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE items SET approval_status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *itemRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	return err
}

func (r *itemRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+` FROM items
		WHERE user_id = $1
		ORDER BY type, created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *itemRepoPG) ListActiveNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT name FROM items WHERE user_id = $1 AND approval_status = 'approved'`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
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

const requestCols = `id, patient_id, doctor_id, item_id, item_name, dosage,
	frequency_value, frequency_unit, first_take, supply_amount, type,
	request_reason, interaction_info, notes, status, doctor_response_notes,
	responded_at, created_at, updated_at`

func scanRequest(row pgx.Row, extra ...interface{}) (*Request, error) {
	var req Request
	var info []byte
	dest := []interface{}{
		&req.ID, &req.PatientID, &req.DoctorID, &req.ItemID, &req.ItemName,
		&req.Dosage, &req.Frequency.Value, &req.Frequency.Unit, &req.FirstTake,
		&req.SupplyAmount, &req.Type, &req.RequestReason, &info, &req.Notes,
		&req.Status, &req.DoctorResponseNotes, &req.RespondedAt,
		&req.CreatedAt, &req.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(info) > 0 {
		if err := json.Unmarshal(info, &req.InteractionInfo); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func (r *requestRepoPG) Create(ctx context.Context, req *Request) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	info := req.InteractionInfo
	if info == nil {
		info = []interaction.PairResult{}
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO approval_requests
			(id, patient_id, doctor_id, item_id, item_name, dosage,
			 frequency_value, frequency_unit, first_take, supply_amount, type,
			 request_reason, interaction_info, notes, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		req.ID, req.PatientID, req.DoctorID, req.ItemID, req.ItemName, req.Dosage,
		req.Frequency.Value, req.Frequency.Unit, req.FirstTake, req.SupplyAmount,
		req.Type, req.RequestReason, encoded, req.Notes, req.Status).
		Scan(&req.CreatedAt, &req.UpdatedAt)
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM approval_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("approval request not found")
		}
		return nil, err
	}
	return req, nil
}

func (r *requestRepoPG) Resolve(ctx context.Context, id uuid.UUID, status string, doctorNotes *string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE approval_requests
		SET status = $2, doctor_response_notes = $3, responded_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id, status, doctorNotes)
	return err
}

func (r *requestRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM approval_requests WHERE id = $1`, id)
	return err
}

func (r *requestRepoPG) ListPendingForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM approval_requests WHERE doctor_id = $1 AND status = 'pending'`,
		doctorID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+prefixedRequestCols("r")+`, p.full_name
		FROM approval_requests r
		JOIN users p ON p.id = r.patient_id
		WHERE r.doctor_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, doctorID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []*Request
	for rows.Next() {
		var patientName string
		req, err := scanRequest(rows, &patientName)
		if err != nil {
			return nil, 0, err
		}
		req.PatientName = patientName
		reqs = append(reqs, req)
	}
	return reqs, total, rows.Err()
}

func (r *requestRepoPG) ListPendingForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM approval_requests WHERE patient_id = $1 AND status = 'pending'`,
		patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+prefixedRequestCols("r")+`, d.full_name
		FROM approval_requests r
		JOIN users d ON d.id = r.doctor_id
		WHERE r.patient_id = $1 AND r.status = 'pending'
		ORDER BY r.created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reqs []*Request
	for rows.Next() {
		var doctorName string
		req, err := scanRequest(rows, &doctorName)
		if err != nil {
			return nil, 0, err
		}
		req.DoctorName = doctorName
		reqs = append(reqs, req)
	}
	return reqs, total, rows.Err()
}

func prefixedRequestCols(alias string) string {
	return alias + `.id, ` + alias + `.patient_id, ` + alias + `.doctor_id, ` +
		alias + `.item_id, ` + alias + `.item_name, ` + alias + `.dosage, ` +
		alias + `.frequency_value, ` + alias + `.frequency_unit, ` + alias + `.first_take, ` +
		alias + `.supply_amount, ` + alias + `.type, ` + alias + `.request_reason, ` +
		alias + `.interaction_info, ` + alias + `.notes, ` + alias + `.status, ` +
		alias + `.doctor_response_notes, ` + alias + `.responded_at, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
