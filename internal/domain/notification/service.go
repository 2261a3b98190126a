package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/supplemate/api/internal/platform/ws"
)

// Service persists notifications and mirrors each write to the live
// channel. The rows are the source of truth; the push is best effort.
// Recording and publishing are separate steps so callers that record
// inside a transaction only publish after it commits.
type Service struct {
	interactions InteractionRepository
	responses    ResponseRepository
	events       ws.EventPublisher
}

func NewService(interactions InteractionRepository, responses ResponseRepository, events ws.EventPublisher) *Service {
	return &Service{interactions: interactions, responses: responses, events: events}
}

// RecordInteraction persists an interaction alert for a doctor. It joins
// the caller's transaction when one is on the context.
func (s *Service) RecordInteraction(ctx context.Context, n *InteractionNotification) error {
	return s.interactions.Create(ctx, n)
}

// PublishInteraction pushes a stored alert to the doctor's live channel.
func (s *Service) PublishInteraction(ctx context.Context, n *InteractionNotification) {
	s.events.PublishToUser(ctx, n.DoctorID, ws.NewEvent(ws.EventInteractionNotificationCreated, n))
}

// RecordDoctorResponse persists an approval outcome for a patient. It
// joins the caller's transaction when one is on the context.
func (s *Service) RecordDoctorResponse(ctx context.Context, n *DoctorResponseNotification) error {
	return s.responses.Create(ctx, n)
}

// PublishDoctorResponse pushes a stored outcome to the patient's live channel.
func (s *Service) PublishDoctorResponse(ctx context.Context, n *DoctorResponseNotification) {
	s.events.PublishToUser(ctx, n.PatientID, ws.NewEvent(ws.EventResponseNotificationCreated, n))
}

func (s *Service) ListInteractionAlerts(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*InteractionNotification, int, error) {
	return s.interactions.ListForDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) DismissInteractionAlert(ctx context.Context, id, doctorID uuid.UUID) error {
	return s.interactions.Delete(ctx, id, doctorID)
}

func (s *Service) ListResponses(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DoctorResponseNotification, int, error) {
	return s.responses.ListForPatient(ctx, patientID, limit, offset)
}

func (s *Service) DismissResponse(ctx context.Context, id, patientID uuid.UUID) error {
	return s.responses.Delete(ctx, id, patientID)
}
