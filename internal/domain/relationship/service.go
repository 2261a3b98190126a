package relationship

import (
	"context"

	"github.com/google/uuid"

	"github.com/supplemate/api/internal/domain/identity"
	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/ws"
)

// UserDirectory is the slice of the identity domain this service needs.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// TxRunner executes fn atomically. In production this is db.WithTx bound
// to the pool; tests run fn directly.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	requests      RequestRepository
	relationships RelationshipRepository
	users         UserDirectory
	tx            TxRunner
	events        ws.EventPublisher
}

func NewService(
	requests RequestRepository,
	relationships RelationshipRepository,
	users UserDirectory,
	tx TxRunner,
	events ws.EventPublisher,
) *Service {
	return &Service{
		requests:      requests,
		relationships: relationships,
		users:         users,
		tx:            tx,
		events:        events,
	}
}

// SendRequest creates a pending connection request from requester to
// recipient. The two must hold opposite roles, must not already be
// connected, and must not have a pending request in either direction.
// A previously rejected request for the same direction is discarded so
// the pair can try again.
func (s *Service) SendRequest(ctx context.Context, requesterID, recipientID uuid.UUID) (*Request, error) {
	if requesterID == recipientID {
		return nil, apperror.Validation("cannot send a request to yourself")
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if requester.Role == recipient.Role {
		return nil, apperror.Validation("requests connect a doctor with a patient")
	}

	existing, err := s.relationships.FindBetweenUsers(ctx, requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("users are already connected")
	}

	pending, err := s.requests.FindPendingBetween(ctx, requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, apperror.Conflict("a pending request already exists between these users")
	}

	requestType := RequestPatientToDoctor
	if requester.Role == identity.RoleDoctor {
		requestType = RequestDoctorToPatient
	}

	req := &Request{
		RequesterID: requesterID,
		RecipientID: recipientID,
		RequestType: requestType,
		Status:      StatusPending,
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		rejected, err := s.requests.FindRejected(ctx, requesterID, recipientID)
		if err != nil {
			return err
		}
		if rejected != nil {
			if err := s.requests.Delete(ctx, rejected.ID); err != nil {
				return err
			}
		}
		return s.requests.Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.events.PublishToUser(ctx, recipientID, ws.NewEvent(ws.EventRelationshipRequestCreated, req))
	s.events.PublishToUser(ctx, requesterID, ws.NewEvent(ws.EventRelationshipRequestUpdated, req))
	return req, nil
}

// RespondToRequest accepts or rejects a pending request. Only the
// recipient may respond, and only once. Accepting creates the
// relationship in the same transaction that resolves the request.
func (s *Service) RespondToRequest(ctx context.Context, responderID, requestID uuid.UUID, accept bool) (*Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RecipientID != responderID {
		return nil, apperror.NotFound("request not found")
	}
	if req.Status != StatusPending {
		return nil, apperror.Conflict("request is already resolved")
	}

	status := StatusRejected
	if accept {
		status = StatusAccepted
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.requests.UpdateStatus(ctx, req.ID, status); err != nil {
			return err
		}
		if accept {
			doctorID, patientID := req.DoctorAndPatient()
			return s.relationships.Create(ctx, &Relationship{
				DoctorID:  doctorID,
				PatientID: patientID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	req.Status = status

	s.events.PublishToUser(ctx, req.RequesterID, ws.NewEvent(ws.EventRelationshipRequestUpdated, req))
	s.events.PublishToUser(ctx, req.RecipientID, ws.NewEvent(ws.EventRelationshipRequestUpdated, req))
	if accept {
		s.events.PublishToUser(ctx, req.RequesterID, ws.NewEvent(ws.EventRelationshipCreated, req))
		s.events.PublishToUser(ctx, req.RecipientID, ws.NewEvent(ws.EventRelationshipCreated, req))
	}
	return req, nil
}

// RemoveRelationship disconnects the two users and discards any requests
// between them, so either side can reconnect from scratch later.
func (s *Service) RemoveRelationship(ctx context.Context, userID, relationshipID uuid.UUID) error {
	rel, err := s.relationships.GetByID(ctx, relationshipID)
	if err != nil {
		return err
	}
	if rel.DoctorID != userID && rel.PatientID != userID {
		return apperror.NotFound("relationship not found")
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.relationships.Delete(ctx, rel.ID); err != nil {
			return err
		}
		return s.requests.DeleteBetween(ctx, rel.DoctorID, rel.PatientID)
	})
	if err != nil {
		return err
	}

	s.events.PublishToUser(ctx, rel.DoctorID, ws.NewEvent(ws.EventRelationshipRemoved, rel))
	s.events.PublishToUser(ctx, rel.PatientID, ws.NewEvent(ws.EventRelationshipRemoved, rel))
	return nil
}

// SetPrimaryDoctor marks the patient's relationship with doctorID as
// primary. Any previous primary flag is cleared in the same transaction,
// so at no point are two relationships primary.
func (s *Service) SetPrimaryDoctor(ctx context.Context, patientID, doctorID uuid.UUID) (*Relationship, error) {
	rel, err := s.relationships.FindBetweenUsers(ctx, patientID, doctorID)
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.PatientID != patientID {
		return nil, apperror.NotFound("no relationship with this doctor")
	}

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.relationships.ClearPrimary(ctx, patientID); err != nil {
			return err
		}
		return s.relationships.SetPrimary(ctx, rel.ID)
	})
	if err != nil {
		return nil, err
	}
	rel.IsPrimaryDoctor = true

	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventPrimaryDoctorUpdated, rel))
	s.events.PublishToUser(ctx, doctorID, ws.NewEvent(ws.EventPrimaryDoctorUpdated, rel))
	return rel, nil
}

// ClearPrimaryDoctor removes the patient's primary flag, if any.
func (s *Service) ClearPrimaryDoctor(ctx context.Context, patientID uuid.UUID) error {
	if err := s.relationships.ClearPrimary(ctx, patientID); err != nil {
		return err
	}
	s.events.PublishToUser(ctx, patientID, ws.NewEvent(ws.EventPrimaryDoctorUpdated, nil))
	return nil
}

// GetPrimaryDoctor returns the patient's primary relationship.
func (s *Service) GetPrimaryDoctor(ctx context.Context, patientID uuid.UUID) (*Relationship, error) {
	rel, err := s.relationships.GetPrimaryDoctor(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, apperror.NotFound("no primary doctor set")
	}
	return rel, nil
}

func (s *Service) ListIncomingRequests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.requests.ListIncoming(ctx, userID, limit, offset)
}

func (s *Service) ListOutgoingRequests(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Request, int, error) {
	return s.requests.ListOutgoing(ctx, userID, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Relationship, int, error) {
	return s.relationships.ListPatients(ctx, doctorID, limit, offset)
}

func (s *Service) ListDoctors(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Relationship, int, error) {
	return s.relationships.ListDoctors(ctx, patientID, limit, offset)
}
