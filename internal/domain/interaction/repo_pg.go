package interaction

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supplemate/api/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const interactionCols = `id, fst_drug, snd_drug, severity, description, last_updated, created_at`

func (r *repoPG) GetPair(ctx context.Context, fstDrug, sndDrug string) (*Interaction, error) {
	var in Interaction
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+interactionCols+` FROM drug_interactions
		WHERE fst_drug = $1 AND snd_drug = $2`, fstDrug, sndDrug).
		Scan(&in.ID, &in.FstDrug, &in.SndDrug, &in.Severity, &in.Description,
			&in.LastUpdated, &in.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// Upsert inserts a pair row or refreshes an existing one. Concurrent
// resolvers racing on the same miss both land on the unique pair.
func (r *repoPG) Upsert(ctx context.Context, in *Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO drug_interactions (id, fst_drug, snd_drug, severity, description)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (fst_drug, snd_drug)
		DO UPDATE SET severity = EXCLUDED.severity,
			description = EXCLUDED.description,
			last_updated = NOW()`,
		in.ID, in.FstDrug, in.SndDrug, in.Severity, in.Description)
	return err
}
