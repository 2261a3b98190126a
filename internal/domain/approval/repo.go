package approval

import (
	"context"

	"github.com/google/uuid"
)

// ItemRepository stores patient items.
type ItemRepository interface {
	Create(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item) error
	UpdateApprovalStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Item, int, error)
	// ListActiveNames returns the names of the user's approved items, the
	// set a new addition is checked against.
	ListActiveNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

// RequestRepository stores approval requests.
type RequestRepository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	// Resolve marks the request terminal and records the doctor's notes.
	Resolve(ctx context.Context, id uuid.UUID, status string, doctorNotes *string) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPendingForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error)
	ListPendingForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Request, int, error)
}
