package relationship

import (
	"context"

	"github.com/google/uuid"
)

// RequestRepository stores connection requests. Lookups that can
// legitimately miss return (nil, nil).
type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// FindPendingBetween returns a pending request between the two users in
	// either direction.
	FindPendingBetween(ctx context.Context, a, b uuid.UUID) (*Request, error)
	// FindRejected returns a rejected request for the exact ordered pair.
	FindRejected(ctx context.Context, requesterID, recipientID uuid.UUID) (*Request, error)
	// DeleteBetween removes all requests between the two users in either
	// direction.
	DeleteBetween(ctx context.Context, a, b uuid.UUID) error
	ListIncoming(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error)
}

// RelationshipRepository stores established connections.
type RelationshipRepository interface {
	Create(ctx context.Context, rel *Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*Relationship, error)
	// FindBetweenUsers returns the relationship connecting the two users,
	// whichever of them is the doctor, or (nil, nil).
	FindBetweenUsers(ctx context.Context, a, b uuid.UUID) (*Relationship, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Relationship, int, error)
	ListDoctors(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Relationship, int, error)
	// ListDoctorIDs returns the ids of every doctor connected to the patient.
	ListDoctorIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
	// GetPrimaryDoctor returns the patient's primary relationship or (nil, nil).
	GetPrimaryDoctor(ctx context.Context, patientID uuid.UUID) (*Relationship, error)
	ClearPrimary(ctx context.Context, patientID uuid.UUID) error
	SetPrimary(ctx context.Context, relationshipID uuid.UUID) error
}
