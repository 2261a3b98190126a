package approval

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/supplemate/api/internal/domain/interaction"
	"github.com/supplemate/api/internal/platform/apperror"
)

const (
	ItemTypeSupplement = "supplement"
	ItemTypeMedication = "medication"
)

const (
	ItemStatusApproved = "approved"
	ItemStatusPending  = "pending"
)

const (
	ReasonInteraction = "interaction"
	ReasonMedication  = "medication"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	FrequencyHours = "hours"
	FrequencyDays  = "days"
)

// Frequency is how often an item is taken, as an explicit value/unit
// pair. Historical data stored a bare number with ambiguous units; see
// DecodeLegacyFrequencySeconds.
type Frequency struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// UnmarshalJSON accepts the explicit value/unit object. A bare number,
// as sent by clients predating the explicit form, goes through
// DecodeLegacyFrequencySeconds.
func (f *Frequency) UnmarshalJSON(data []byte) error {
	if n, err := strconv.Atoi(string(bytes.TrimSpace(data))); err == nil {
		*f = DecodeLegacyFrequencySeconds(n)
		return nil
	}
	type plain Frequency
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = Frequency(p)
	return nil
}

func (f Frequency) Validate() error {
	if f.Value <= 0 {
		return apperror.Validation("frequency value must be positive")
	}
	if f.Unit != FrequencyHours && f.Unit != FrequencyDays {
		return apperror.Validation("frequency unit must be hours or days")
	}
	return nil
}

// DecodeLegacyFrequencySeconds converts a legacy frequency number into
// the explicit form. Old rows nominally stored seconds but many were
// written as hours; values up to 168 (one week in hours) are assumed to
// be hours already. The cutoff reproduces the observed data, it was
// never a documented rule.
func DecodeLegacyFrequencySeconds(n int) Frequency {
	hours := n
	if n > 168 {
		hours = n / 3600
		if hours < 1 {
			hours = 1
		}
	}
	if hours >= 24 && hours%24 == 0 {
		return Frequency{Value: hours / 24, Unit: FrequencyDays}
	}
	return Frequency{Value: hours, Unit: FrequencyHours}
}

// Item is a supplement or medication on a patient's list. Pending items
// are visible to their owner but excluded from interaction checks until
// a doctor resolves the approval request.
type Item struct {
	ID             uuid.UUID `db:"id" json:"id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Name           string    `db:"name" json:"name"`
	Dosage         string    `db:"dosage" json:"dosage"`
	Frequency      Frequency `db:"-" json:"frequency"`
	FirstTake      time.Time `db:"first_take" json:"first_take"`
	SupplyAmount   int       `db:"supply_amount" json:"supply_amount"`
	Type           string    `db:"type" json:"type"`
	ApprovalStatus string    `db:"approval_status" json:"approval_status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Request is a pending proposal to add an item, addressed to the
// patient's primary doctor. Terminal once approved or rejected.
type Request struct {
	ID                  uuid.UUID                `db:"id" json:"id"`
	PatientID           uuid.UUID                `db:"patient_id" json:"patient_id"`
	DoctorID            uuid.UUID                `db:"doctor_id" json:"doctor_id"`
	ItemID              uuid.UUID                `db:"item_id" json:"item_id"`
	ItemName            string                   `db:"item_name" json:"item_name"`
	Dosage              string                   `db:"dosage" json:"dosage"`
	Frequency           Frequency                `db:"-" json:"frequency"`
	FirstTake           time.Time                `db:"first_take" json:"first_take"`
	SupplyAmount        int                      `db:"supply_amount" json:"supply_amount"`
	Type                string                   `db:"type" json:"type"`
	RequestReason       string                   `db:"request_reason" json:"request_reason"`
	InteractionInfo     []interaction.PairResult `db:"interaction_info" json:"interaction_info"`
	Notes               *string                  `db:"notes" json:"notes,omitempty"`
	Status              string                   `db:"status" json:"status"`
	DoctorResponseNotes *string                  `db:"doctor_response_notes" json:"doctor_response_notes,omitempty"`
	RespondedAt         *time.Time               `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt           time.Time                `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time                `db:"updated_at" json:"updated_at"`
	PatientName         string                   `db:"-" json:"patient_name,omitempty"`
	DoctorName          string                   `db:"-" json:"doctor_name,omitempty"`
}

// PatientItems is the doctor-facing view of a patient's list, split by
// item type.
type PatientItems struct {
	Supplements     []*Item `json:"supplements"`
	Medications     []*Item `json:"medications"`
	Total           int     `json:"total"`
	SupplementCount int     `json:"supplement_count"`
	MedicationCount int     `json:"medication_count"`
}
