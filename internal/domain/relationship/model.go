package relationship

import (
	"time"

	"github.com/google/uuid"
)

// Request direction. Who asked determines the type; the counterpart role
// is derived from it when the request is accepted.
const (
	RequestDoctorToPatient = "doctor_to_patient"
	RequestPatientToDoctor = "patient_to_doctor"
)

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Request is a connection request between a doctor and a patient. At most
// one non-terminal request exists per ordered (requester, recipient) pair.
type Request struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RequesterID   uuid.UUID `db:"requester_id" json:"requester_id"`
	RecipientID   uuid.UUID `db:"recipient_id" json:"recipient_id"`
	RequestType   string    `db:"request_type" json:"request_type"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
	RequesterName string    `db:"-" json:"requester_name,omitempty"`
	RecipientName string    `db:"-" json:"recipient_name,omitempty"`
}

// Relationship is an established doctor-patient connection. A patient has
// at most one relationship flagged primary.
type Relationship struct {
	ID              uuid.UUID `db:"id" json:"id"`
	DoctorID        uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	IsPrimaryDoctor bool      `db:"is_primary_doctor" json:"is_primary_doctor"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	DoctorName      string    `db:"-" json:"doctor_name,omitempty"`
	PatientName     string    `db:"-" json:"patient_name,omitempty"`
}

// DoctorAndPatient resolves which side of the request is the doctor.
func (r *Request) DoctorAndPatient() (doctorID, patientID uuid.UUID) {
	if r.RequestType == RequestDoctorToPatient {
		return r.RequesterID, r.RecipientID
	}
	return r.RecipientID, r.RequesterID
}
