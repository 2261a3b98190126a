package approval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/supplemate/api/internal/domain/identity"
	"github.com/supplemate/api/internal/domain/interaction"
	"github.com/supplemate/api/internal/domain/notification"
	"github.com/supplemate/api/internal/domain/relationship"
	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/ws"
)

// InteractionChecker resolves a candidate item against a patient's
// current list.
type InteractionChecker interface {
	CheckAgainstList(ctx context.Context, newDrug string, existing []string) ([]interaction.PairResult, interaction.CoarseSeverity, error)
}

// RelationshipDirectory is the slice of the relationship domain this
// service needs: primary doctor lookup and doctor fan-out targets.
type RelationshipDirectory interface {
	GetPrimaryDoctor(ctx context.Context, patientID uuid.UUID) (*relationship.Relationship, error)
	FindBetweenUsers(ctx context.Context, a, b uuid.UUID) (*relationship.Relationship, error)
	ListDoctorIDs(ctx context.Context, patientID uuid.UUID) ([]uuid.UUID, error)
}

// UserDirectory resolves user names for notification rows.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Alerts writes durable notifications and pushes them to the live
// channel. Recording joins this service's transactions; publishing is
// deferred until after commit so clients never see a push for a row
// that was rolled back.
type Alerts interface {
	RecordInteraction(ctx context.Context, n *notification.InteractionNotification) error
	PublishInteraction(ctx context.Context, n *notification.InteractionNotification)
	RecordDoctorResponse(ctx context.Context, n *notification.DoctorResponseNotification) error
	PublishDoctorResponse(ctx context.Context, n *notification.DoctorResponseNotification)
}

// TxRunner executes fn atomically.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	items         ItemRepository
	requests      RequestRepository
	interactions  InteractionChecker
	relationships RelationshipDirectory
	users         UserDirectory
	alerts        Alerts
	tx            TxRunner
	events        ws.EventPublisher
	logger        zerolog.Logger
}

func NewService(
	items ItemRepository,
	requests RequestRepository,
	interactions InteractionChecker,
	relationships RelationshipDirectory,
	users UserDirectory,
	alerts Alerts,
	tx TxRunner,
	events ws.EventPublisher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		items:         items,
		requests:      requests,
		interactions:  interactions,
		relationships: relationships,
		users:         users,
		alerts:        alerts,
		tx:            tx,
		events:        events,
		logger:        logger,
	}
}

// AddItemInput is the patient-supplied item definition.
type AddItemInput struct {
	Name         string    `json:"name"`
	Dosage       string    `json:"dosage"`
	Frequency    Frequency `json:"frequency"`
	FirstTake    time.Time `json:"first_take"`
	SupplyAmount int       `json:"supply_amount"`
	Type         string    `json:"type"`
	Notes        *string   `json:"notes,omitempty"`
}

func (in *AddItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperror.Validation("name is required")
	}
	if strings.TrimSpace(in.Dosage) == "" {
		return apperror.Validation("dosage is required")
	}
	if err := in.Frequency.Validate(); err != nil {
		return err
	}
	if in.FirstTake.IsZero() {
		return apperror.Validation("first_take is required")
	}
	if in.SupplyAmount <= 0 {
		return apperror.Validation("supply_amount must be positive")
	}
	if in.Type == "" {
		in.Type = ItemTypeSupplement
	}
	if in.Type != ItemTypeSupplement && in.Type != ItemTypeMedication {
		return apperror.Validation("type must be supplement or medication")
	}
	return nil
}

// AddItemResult reports whether the addition activated immediately or
// was routed to the patient's primary doctor.
type AddItemResult struct {
	ApprovalRequired bool     `json:"approval_required"`
	Item             *Item    `json:"item,omitempty"`
	ApprovalRequest  *Request `json:"approval_request,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// AddItem runs the routing rule: the candidate is checked against every
// active item, and goes to the approval path when any interaction is
// found or the item is a medication. Everything else activates
// immediately. A routed addition with no primary doctor is a conflict,
// not a silent bypass.
func (s *Service) AddItem(ctx context.Context, patientID uuid.UUID, in AddItemInput) (*AddItemResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.items.ListActiveNames(ctx, patientID)
	if err != nil {
		return nil, err
	}
	pairs, worst, err := s.interactions.CheckAgainstList(ctx, in.Name, existing)
	if err != nil {
		return nil, err
	}

	if in.Type != ItemTypeMedication && worst == interaction.CoarseNone {
		return s.addDirectly(ctx, patientID, in)
	}
	return s.routeForApproval(ctx, patientID, in, pairs)
}

func (s *Service) addDirectly(ctx context.Context, patientID uuid.UUID, in AddItemInput) (*AddItemResult, error) {
	item := &Item{
		UserID:         patientID,
		Name:           in.Name,
		Dosage:         in.Dosage,
		Frequency:      in.Frequency,
		FirstTake:      in.FirstTake,
		SupplyAmount:   in.SupplyAmount,
		Type:           in.Type,
		ApprovalStatus: ItemStatusApproved,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	s.publishItemChange(ctx, patientID)
	return &AddItemResult{Item: item}, nil
}

func (s *Service) routeForApproval(ctx context.Context, patientID uuid.UUID, in AddItemInput, pairs []interaction.PairResult) (*AddItemResult, error) {
	primary, err := s.relationships.GetPrimaryDoctor(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, apperror.Conflict("a primary doctor is required before adding this item")
	}

	reason := ReasonInteraction
	if in.Type == ItemTypeMedication {
		reason = ReasonMedication
	}

	item := &Item{
		UserID:         patientID,
		Name:           in.Name,
		Dosage:         in.Dosage,
		Frequency:      in.Frequency,
		FirstTake:      in.FirstTake,
		SupplyAmount:   in.SupplyAmount,
		Type:           in.Type,
		ApprovalStatus: ItemStatusPending,
	}
	req := &Request{
		PatientID:       patientID,
		DoctorID:        primary.DoctorID,
		ItemName:        in.Name,
		Dosage:          in.Dosage,
		Frequency:       in.Frequency,
		FirstTake:       in.FirstTake,
		SupplyAmount:    in.SupplyAmount,
		Type:            in.Type,
		RequestReason:   reason,
		InteractionInfo: pairs,
		Notes:           in.Notes,
		Status:          StatusPending,
	}

	var alerts []*notification.InteractionNotification
	if reason == ReasonInteraction {
		alerts, err = s.buildInteractionAlerts(ctx, patientID, primary.DoctorID, pairs)
		if err != nil {
			return nil, err
		}
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}
		req.ItemID = item.ID
		if err := s.requests.Create(ctx, req); err != nil {
			return err
		}
		for _, n := range alerts {
			if err := s.alerts.RecordInteraction(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, n := range alerts {
		s.alerts.PublishInteraction(ctx, n)
	}
	s.events.PublishToUser(ctx, primary.DoctorID, ws.NewEvent(ws.EventApprovalRequestCreated, req))
	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventApprovalRequestCreated, req))
	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventItemListUpdated, nil))

	msg := "Item has interactions and requires doctor approval"
	if reason == ReasonMedication {
		msg = "Medication requires doctor approval"
	}
	return &AddItemResult{ApprovalRequired: true, ApprovalRequest: req, Message: msg}, nil
}

// buildInteractionAlerts prepares one alert row per interacting pair for
// the primary doctor.
func (s *Service) buildInteractionAlerts(ctx context.Context, patientID, doctorID uuid.UUID, pairs []interaction.PairResult) ([]*notification.InteractionNotification, error) {
	patient, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	alerts := make([]*notification.InteractionNotification, 0, len(pairs))
	for _, pair := range pairs {
		alerts = append(alerts, &notification.InteractionNotification{
			DoctorID:        doctorID,
			PatientID:       patientID,
			PatientName:     patient.FullName,
			AddedItem:       pair.Drug1,
			InteractingItem: pair.Drug2,
			Severity:        string(pair.Severity),
			Description:     pair.Description,
		})
	}
	return alerts, nil
}

// Respond resolves a pending request. Approval activates the pending
// item; rejection discards it. Either way a durable response
// notification is written in the same transaction and pushed to the
// patient once it commits.
func (s *Service) Respond(ctx context.Context, doctorID, requestID uuid.UUID, approve bool, notes *string) (*Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.DoctorID != doctorID {
		return nil, apperror.NotFound("approval request not found")
	}
	if req.Status != StatusPending {
		return nil, apperror.Conflict("approval request is already resolved")
	}

	doctor, err := s.users.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	status := StatusRejected
	responseType := notification.ResponseRejected
	if approve {
		status = StatusApproved
		responseType = notification.ResponseApproved
	}

	response := &notification.DoctorResponseNotification{
		PatientID:         req.PatientID,
		DoctorID:          doctorID,
		ApprovalRequestID: req.ID,
		DoctorName:        doctor.FullName,
		ItemName:          req.ItemName,
		ResponseType:      responseType,
		DoctorNotes:       notes,
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.requests.Resolve(ctx, req.ID, status, notes); err != nil {
			return err
		}
		if approve {
			if err := s.items.UpdateApprovalStatus(ctx, req.ItemID, ItemStatusApproved); err != nil {
				return err
			}
		} else {
			if err := s.items.Delete(ctx, req.ItemID); err != nil {
				return err
			}
		}
		return s.alerts.RecordDoctorResponse(ctx, response)
	})
	if err != nil {
		return nil, err
	}
	req.Status = status
	req.DoctorResponseNotes = notes
	now := time.Now()
	req.RespondedAt = &now

	s.alerts.PublishDoctorResponse(ctx, response)
	s.events.PublishToUser(ctx, req.PatientID, ws.NewEvent(ws.EventApprovalRequestResolved, req))
	s.events.PublishToUser(ctx, doctorID, ws.NewEvent(ws.EventApprovalRequestResolved, req))
	s.publishItemChange(ctx, req.PatientID)
	return req, nil
}

// Cancel is the patient withdrawing a pending request. The request and
// its pending item are deleted together.
func (s *Service) Cancel(ctx context.Context, patientID, requestID uuid.UUID) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req.PatientID != patientID {
		return apperror.NotFound("approval request not found")
	}
	if req.Status != StatusPending {
		return apperror.Conflict("approval request is already resolved")
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.requests.Delete(ctx, req.ID); err != nil {
			return err
		}
		return s.items.Delete(ctx, req.ItemID)
	})
	if err != nil {
		return err
	}

	s.events.PublishToUser(ctx, req.DoctorID, ws.NewEvent(ws.EventApprovalRequestCancelled, req))
	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventApprovalRequestCancelled, req))
	s.publishItemChange(ctx, patientID)
	return nil
}

func (s *Service) ListItems(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Item, int, error) {
	return s.items.ListByUser(ctx, userID, limit, offset)
}

// UpdateItem changes dose and schedule fields. The name and type are
// fixed once added; changing them would sidestep the routing rule.
type UpdateItemInput struct {
	Dosage       string    `json:"dosage"`
	Frequency    Frequency `json:"frequency"`
	FirstTake    time.Time `json:"first_take"`
	SupplyAmount int       `json:"supply_amount"`
}

func (s *Service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, in UpdateItemInput) (*Item, error) {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.UserID != userID {
		return nil, apperror.NotFound("item not found")
	}
	if strings.TrimSpace(in.Dosage) == "" {
		return nil, apperror.Validation("dosage is required")
	}
	if err := in.Frequency.Validate(); err != nil {
		return nil, err
	}
	if in.SupplyAmount <= 0 {
		return nil, apperror.Validation("supply_amount must be positive")
	}
	if in.FirstTake.IsZero() {
		in.FirstTake = item.FirstTake
	}

	item.Dosage = in.Dosage
	item.Frequency = in.Frequency
	item.FirstTake = in.FirstTake
	item.SupplyAmount = in.SupplyAmount
	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	s.publishItemChange(ctx, userID)
	return item, nil
}

// DeleteItem removes an item. A pending item's approval request goes
// with it via the storage cascade.
func (s *Service) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.UserID != userID {
		return apperror.NotFound("item not found")
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return err
	}
	s.publishItemChange(ctx, userID)
	return nil
}

// ListPatientItems is the doctor view of a connected patient's list.
func (s *Service) ListPatientItems(ctx context.Context, doctorID, patientID uuid.UUID) (*PatientItems, error) {
	rel, err := s.relationships.FindBetweenUsers(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.DoctorID != doctorID {
		return nil, apperror.NotFound("patient not found")
	}

	items, _, err := s.items.ListByUser(ctx, patientID, 1000, 0)
	if err != nil {
		return nil, err
	}
	view := &PatientItems{
		Supplements: []*Item{},
		Medications: []*Item{},
		Total:       len(items),
	}
	for _, it := range items {
		if it.Type == ItemTypeMedication {
			view.Medications = append(view.Medications, it)
		} else {
			view.Supplements = append(view.Supplements, it)
		}
	}
	view.SupplementCount = len(view.Supplements)
	view.MedicationCount = len(view.Medications)
	return view, nil
}

func (s *Service) ListPendingForDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.requests.ListPendingForDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) ListPendingForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.requests.ListPendingForPatient(ctx, patientID, limit, offset)
}

// publishItemChange tells the owner and every connected doctor that the
// patient's list changed. Fan-out failures are logged, not surfaced.
func (s *Service) publishItemChange(ctx context.Context, patientID uuid.UUID) {
	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventItemListUpdated, nil))

	doctorIDs, err := s.relationships.ListDoctorIDs(ctx, patientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).
			Msg("failed to list doctors for item change fan-out")
		return
	}
	payload := struct {
		PatientID uuid.UUID `json:"patient_id"`
	}{PatientID: patientID}
	for _, doctorID := range doctorIDs {
		s.events.PublishToUser(ctx, doctorID, ws.NewEvent(ws.EventPatientItemsUpdated, payload))
	}
}
