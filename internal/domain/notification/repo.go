package notification

import (
	"context"

	"github.com/google/uuid"
)

// InteractionRepository stores doctor-facing interaction alerts.
type InteractionRepository interface {
	Create(ctx context.Context, n *InteractionNotification) error
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*InteractionNotification, int, error)
	// Delete removes the notification only if doctorID is its recipient.
	Delete(ctx context.Context, id, doctorID uuid.UUID) error
}

// ResponseRepository stores patient-facing approval outcome notifications.
type ResponseRepository interface {
	Create(ctx context.Context, n *DoctorResponseNotification) error
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DoctorResponseNotification, int, error)
	// Delete removes the notification only if patientID is its recipient.
	Delete(ctx context.Context, id, patientID uuid.UUID) error
}
