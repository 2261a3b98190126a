package notification

import (
	"time"

	"github.com/google/uuid"
)

const (
	ResponseApproved = "approved"
	ResponseRejected = "rejected"
)

// InteractionNotification is a durable alert for a doctor whose primary
// patient added something that interacts with an existing item.
type InteractionNotification struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	PatientName     string    `db:"patient_name" json:"patient_name"`
	AddedItem       string    `db:"added_item" json:"added_item"`
	InteractingItem string    `db:"interacting_item" json:"interacting_item"`
	Severity        string    `db:"severity" json:"severity"`
	Description     string    `db:"description" json:"description"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// DoctorResponseNotification tells a patient how their approval request
// was resolved. It outlives the live push, so patients who were offline
// still see the outcome.
type DoctorResponseNotification struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID          uuid.UUID `db:"doctor_id" json:"doctor_id"`
	ApprovalRequestID uuid.UUID `db:"approval_request_id" json:"approval_request_id"`
	DoctorName        string    `db:"doctor_name" json:"doctor_name"`
	ItemName          string    `db:"item_name" json:"item_name"`
	ResponseType      string    `db:"response_type" json:"response_type"`
	DoctorNotes       *string   `db:"doctor_notes" json:"doctor_notes,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
