package relationship

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/supplemate/api/internal/domain/identity"
	"github.com/supplemate/api/internal/platform/apperror"
	"github.com/supplemate/api/internal/platform/ws"
)

type mockUserDirectory struct {
	users map[uuid.UUID]*identity.User
}

func (m *mockUserDirectory) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user %s not found", id)
	}
	return u, nil
}

type mockRequestRepo struct {
	requests map[uuid.UUID]*Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *Request) error {
	r.ID = uuid.New()
	m.requests[r.ID] = r
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, apperror.NotFound("request %s not found", id)
	}
	return r, nil
}

func (m *mockRequestRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.requests[id].Status = status
	return nil
}

func (m *mockRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.requests, id)
	return nil
}

func (m *mockRequestRepo) FindPendingBetween(_ context.Context, a, b uuid.UUID) (*Request, error) {
	for _, r := range m.requests {
		if r.Status != StatusPending {
			continue
		}
		if (r.RequesterID == a && r.RecipientID == b) || (r.RequesterID == b && r.RecipientID == a) {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) FindRejected(_ context.Context, requesterID, recipientID uuid.UUID) (*Request, error) {
	for _, r := range m.requests {
		if r.Status == StatusRejected && r.RequesterID == requesterID && r.RecipientID == recipientID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockRequestRepo) DeleteBetween(_ context.Context, a, b uuid.UUID) error {
	for id, r := range m.requests {
		if (r.RequesterID == a && r.RecipientID == b) || (r.RequesterID == b && r.RecipientID == a) {
			delete(m.requests, id)
		}
	}
	return nil
}

func (m *mockRequestRepo) ListIncoming(_ context.Context, userID uuid.UUID, _, _ int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.requests {
		if r.RecipientID == userID && r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) ListOutgoing(_ context.Context, userID uuid.UUID, _, _ int) ([]*Request, int, error) {
	var out []*Request
	for _, r := range m.requests {
		if r.RequesterID == userID && r.Status == StatusPending {
			out = append(out, r)
		}
	}
	return out, len(out), nil
}

type mockRelationshipRepo struct {
	relationships map[uuid.UUID]*Relationship
}

func newMockRelationshipRepo() *mockRelationshipRepo {
	return &mockRelationshipRepo{relationships: make(map[uuid.UUID]*Relationship)}
}

func (m *mockRelationshipRepo) Create(_ context.Context, rel *Relationship) error {
	rel.ID = uuid.New()
	m.relationships[rel.ID] = rel
	return nil
}

func (m *mockRelationshipRepo) GetByID(_ context.Context, id uuid.UUID) (*Relationship, error) {
	rel, ok := m.relationships[id]
	if !ok {
		return nil, apperror.NotFound("relationship %s not found", id)
	}
	return rel, nil
}

func (m *mockRelationshipRepo) FindBetweenUsers(_ context.Context, a, b uuid.UUID) (*Relationship, error) {
	for _, rel := range m.relationships {
		if (rel.DoctorID == a && rel.PatientID == b) || (rel.DoctorID == b && rel.PatientID == a) {
			return rel, nil
		}
	}
	return nil, nil
}

func (m *mockRelationshipRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.relationships, id)
	return nil
}

func (m *mockRelationshipRepo) ListPatients(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*Relationship, int, error) {
	var out []*Relationship
	for _, rel := range m.relationships {
		if rel.DoctorID == doctorID {
			out = append(out, rel)
		}
	}
	return out, len(out), nil
}

func (m *mockRelationshipRepo) ListDoctors(_ context.Context, patientID uuid.UUID, _, _ int) ([]*Relationship, int, error) {
	var out []*Relationship
	for _, rel := range m.relationships {
		if rel.PatientID == patientID {
			out = append(out, rel)
		}
	}
	return out, len(out), nil
}

func (m *mockRelationshipRepo) ListDoctorIDs(_ context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, rel := range m.relationships {
		if rel.PatientID == patientID {
			ids = append(ids, rel.DoctorID)
		}
	}
	return ids, nil
}

func (m *mockRelationshipRepo) GetPrimaryDoctor(_ context.Context, patientID uuid.UUID) (*Relationship, error) {
	for _, rel := range m.relationships {
		if rel.PatientID == patientID && rel.IsPrimaryDoctor {
			return rel, nil
		}
	}
	return nil, nil
}

func (m *mockRelationshipRepo) ClearPrimary(_ context.Context, patientID uuid.UUID) error {
	for _, rel := range m.relationships {
		if rel.PatientID == patientID {
			rel.IsPrimaryDoctor = false
		}
	}
	return nil
}

func (m *mockRelationshipRepo) SetPrimary(_ context.Context, relationshipID uuid.UUID) error {
	m.relationships[relationshipID].IsPrimaryDoctor = true
	return nil
}

type mockPublisher struct {
	events map[uuid.UUID][]ws.Event
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{events: make(map[uuid.UUID][]ws.Event)}
}

func (m *mockPublisher) PublishToUser(_ context.Context, userID uuid.UUID, e ws.Event) {
	m.events[userID] = append(m.events[userID], e)
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var (
	testDoctorID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testPatientID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func newTestService() (*Service, *mockRequestRepo, *mockRelationshipRepo, *mockPublisher) {
	users := &mockUserDirectory{users: map[uuid.UUID]*identity.User{
		testDoctorID:  {ID: testDoctorID, FullName: "Dr Smith", Role: identity.RoleDoctor},
		testPatientID: {ID: testPatientID, FullName: "Pat Jones", Role: identity.RolePatient},
	}}
	requests := newMockRequestRepo()
	relationships := newMockRelationshipRepo()
	pub := newMockPublisher()
	svc := NewService(requests, relationships, users, passthroughTx, pub)
	return svc, requests, relationships, pub
}

func TestSendRequestCreatesPending(t *testing.T) {
	svc, _, _, pub := newTestService()

	req, err := svc.SendRequest(context.Background(), testPatientID, testDoctorID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.RequestType != RequestPatientToDoctor {
		t.Errorf("expected patient_to_doctor, got %s", req.RequestType)
	}
	if req.Status != StatusPending {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if len(pub.events[testDoctorID]) == 0 {
		t.Error("expected an event for the recipient")
	}
}

func TestSendRequestToSelfRejected(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.SendRequest(context.Background(), testPatientID, testPatientID)
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSendRequestSameRoleRejected(t *testing.T) {
	svc, _, _, _ := newTestService()
	otherPatient := uuid.New()
	svc.users.(*mockUserDirectory).users[otherPatient] = &identity.User{
		ID: otherPatient, FullName: "Other", Role: identity.RolePatient,
	}

	_, err := svc.SendRequest(context.Background(), testPatientID, otherPatient)
	if err == nil {
		t.Fatal("expected error for patient-to-patient request")
	}
}

func TestSendRequestConflictsWithPending(t *testing.T) {
	svc, _, _, _ := newTestService()

	if _, err := svc.SendRequest(context.Background(), testPatientID, testDoctorID); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	// Reverse direction is blocked too.
	_, err := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSendRequestConflictsWithRelationship(t *testing.T) {
	svc, _, relationships, _ := newTestService()
	relationships.Create(context.Background(), &Relationship{
		DoctorID: testDoctorID, PatientID: testPatientID,
	})

	_, err := svc.SendRequest(context.Background(), testPatientID, testDoctorID)
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSendRequestReplacesRejected(t *testing.T) {
	svc, requests, _, _ := newTestService()

	first, err := svc.SendRequest(context.Background(), testPatientID, testDoctorID)
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if _, err := svc.RespondToRequest(context.Background(), testDoctorID, first.ID, false); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	second, err := svc.SendRequest(context.Background(), testPatientID, testDoctorID)
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if _, ok := requests.requests[first.ID]; ok {
		t.Error("rejected request should have been discarded")
	}
	if got := requests.requests[second.ID]; got == nil || got.Status != StatusPending {
		t.Error("expected a fresh pending request")
	}
}

func TestRespondAcceptCreatesRelationship(t *testing.T) {
	svc, _, relationships, pub := newTestService()

	req, _ := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	resolved, err := svc.RespondToRequest(context.Background(), testPatientID, req.ID, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != StatusAccepted {
		t.Errorf("expected accepted, got %s", resolved.Status)
	}

	rel, err := relationships.FindBetweenUsers(context.Background(), testDoctorID, testPatientID)
	if err != nil || rel == nil {
		t.Fatalf("expected relationship, got %v %v", rel, err)
	}
	if rel.DoctorID != testDoctorID || rel.PatientID != testPatientID {
		t.Errorf("doctor/patient sides resolved wrong: %+v", rel)
	}
	if rel.IsPrimaryDoctor {
		t.Error("accepting a request must not set the primary flag")
	}

	found := false
	for _, e := range pub.events[testDoctorID] {
		if e.Type == ws.EventRelationshipCreated {
			found = true
		}
	}
	if !found {
		t.Error("expected relationship.created event for the requester")
	}
}

func TestRespondRejectLeavesNoRelationship(t *testing.T) {
	svc, _, relationships, _ := newTestService()

	req, _ := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	if _, err := svc.RespondToRequest(context.Background(), testPatientID, req.ID, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rel, _ := relationships.FindBetweenUsers(context.Background(), testDoctorID, testPatientID)
	if rel != nil {
		t.Error("rejecting must not create a relationship")
	}
}

func TestRespondOnlyRecipient(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, _ := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	_, err := svc.RespondToRequest(context.Background(), testDoctorID, req.ID, true)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for non-recipient, got %v", err)
	}
}

func TestRespondTwiceConflicts(t *testing.T) {
	svc, _, _, _ := newTestService()

	req, _ := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	if _, err := svc.RespondToRequest(context.Background(), testPatientID, req.ID, true); err != nil {
		t.Fatalf("first respond failed: %v", err)
	}
	_, err := svc.RespondToRequest(context.Background(), testPatientID, req.ID, false)
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetPrimaryDoctorReplacesPrevious(t *testing.T) {
	svc, _, relationships, _ := newTestService()
	otherDoctor := uuid.New()
	svc.users.(*mockUserDirectory).users[otherDoctor] = &identity.User{
		ID: otherDoctor, FullName: "Dr Lee", Role: identity.RoleDoctor,
	}
	relationships.Create(context.Background(), &Relationship{DoctorID: testDoctorID, PatientID: testPatientID})
	relationships.Create(context.Background(), &Relationship{DoctorID: otherDoctor, PatientID: testPatientID})

	if _, err := svc.SetPrimaryDoctor(context.Background(), testPatientID, testDoctorID); err != nil {
		t.Fatalf("first set failed: %v", err)
	}
	if _, err := svc.SetPrimaryDoctor(context.Background(), testPatientID, otherDoctor); err != nil {
		t.Fatalf("second set failed: %v", err)
	}

	primaries := 0
	for _, rel := range relationships.relationships {
		if rel.IsPrimaryDoctor {
			primaries++
			if rel.DoctorID != otherDoctor {
				t.Errorf("wrong primary doctor: %s", rel.DoctorID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary relationship, got %d", primaries)
	}
}

func TestSetPrimaryDoctorRequiresRelationship(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.SetPrimaryDoctor(context.Background(), testPatientID, testDoctorID)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetPrimaryDoctorMissIsNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.GetPrimaryDoctor(context.Background(), testPatientID)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveRelationshipClearsRequests(t *testing.T) {
	svc, requests, relationships, _ := newTestService()

	req, _ := svc.SendRequest(context.Background(), testDoctorID, testPatientID)
	if _, err := svc.RespondToRequest(context.Background(), testPatientID, req.ID, true); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	rel, _ := relationships.FindBetweenUsers(context.Background(), testDoctorID, testPatientID)

	if err := svc.RemoveRelationship(context.Background(), testPatientID, rel.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(relationships.relationships) != 0 {
		t.Error("relationship should be gone")
	}
	if len(requests.requests) != 0 {
		t.Error("requests between the pair should be gone")
	}
}

func TestRemoveRelationshipOnlyParties(t *testing.T) {
	svc, _, relationships, _ := newTestService()
	rel := &Relationship{DoctorID: testDoctorID, PatientID: testPatientID}
	relationships.Create(context.Background(), rel)

	err := svc.RemoveRelationship(context.Background(), uuid.New(), rel.ID)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for outsider, got %v", err)
	}
}
