package identity

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account. Doctors carry clinic details; patients don't.
type User struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FullName   string    `db:"full_name" json:"full_name"`
	Email      string    `db:"email" json:"email"`
	Role       string    `db:"role" json:"role"`
	ClinicName *string   `db:"clinic_name" json:"clinic_name,omitempty"`
	Biography  *string   `db:"biography" json:"biography,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

const (
	RolePatient = "patient"
	RoleDoctor  = "doctor"
)
