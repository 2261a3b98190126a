package approval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
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

type mockItemRepo struct {
	items map[uuid.UUID]*Item
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[uuid.UUID]*Item)}
}

func (m *mockItemRepo) Create(_ context.Context, item *Item) error {
	item.ID = uuid.New()
	m.items[item.ID] = item
	return nil
}

func (m *mockItemRepo) GetByID(_ context.Context, id uuid.UUID) (*Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, apperror.NotFound("item not found")
	}
	return it, nil
}

func (m *mockItemRepo) Update(_ context.Context, item *Item) error {
	m.items[item.ID] = item
	return nil
}

func (m *mockItemRepo) UpdateApprovalStatus(_ context.Context, id uuid.UUID, status string) error {
	m.items[id].ApprovalStatus = status
	return nil
}

func (m *mockItemRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.items, id)
	return nil
}

func (m *mockItemRepo) ListByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]*Item, int, error) {
	var out []*Item
	for _, it := range m.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, len(out), nil
}

func (m *mockItemRepo) ListActiveNames(_ context.Context, userID uuid.UUID) ([]string, error) {
	var names []string
	for _, it := range m.items {
		if it.UserID == userID && it.ApprovalStatus == ItemStatusApproved {
			names = append(names, it.Name)
		}
	}
	return names, nil
}

type mockRequestRepo struct {
	requests map[uuid.UUID]*Request
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*Request)}
}

func (m *mockRequestRepo) Create(_ context.Context, req *Request) error {
	req.ID = uuid.New()
	m.requests[req.ID] = req
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, apperror.NotFound("approval request not found")
	}
	return req, nil
}

func (m *mockRequestRepo) Resolve(_ context.Context, id uuid.UUID, status string, doctorNotes *string) error {
	req := m.requests[id]
	req.Status = status
	req.DoctorResponseNotes = doctorNotes
	now := time.Now()
	req.RespondedAt = &now
	return nil
}

func (m *mockRequestRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.requests, id)
	return nil
}

func (m *mockRequestRepo) ListPendingForDoctor(_ context.Context, doctorID uuid.UUID, _, _ int) ([]*Request, int, error) {
	var out []*Request
	for _, req := range m.requests {
		if req.DoctorID == doctorID && req.Status == StatusPending {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

func (m *mockRequestRepo) ListPendingForPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*Request, int, error) {
	var out []*Request
	for _, req := range m.requests {
		if req.PatientID == patientID && req.Status == StatusPending {
			out = append(out, req)
		}
	}
	return out, len(out), nil
}

// mockChecker resolves from a fixed pair table keyed on sorted
// normalized names.
type mockChecker struct {
	pairs map[string]interaction.PairResult
}

func (m *mockChecker) CheckAgainstList(_ context.Context, newDrug string, existing []string) ([]interaction.PairResult, interaction.CoarseSeverity, error) {
	worst := interaction.CoarseNone
	var results []interaction.PairResult
	for _, other := range existing {
		fst, snd := interaction.PairKey(newDrug, other)
		pair, ok := m.pairs[fst+"|"+snd]
		if !ok {
			continue
		}
		results = append(results, interaction.PairResult{
			Drug1:       newDrug,
			Drug2:       other,
			Severity:    pair.Severity,
			Description: pair.Description,
		})
		if pair.Severity == interaction.CoarseStrong ||
			(pair.Severity == interaction.CoarseMild && worst == interaction.CoarseNone) {
			worst = pair.Severity
		}
	}
	return results, worst, nil
}

type mockRelationshipDir struct {
	relationships []*relationship.Relationship
}

func (m *mockRelationshipDir) GetPrimaryDoctor(_ context.Context, patientID uuid.UUID) (*relationship.Relationship, error) {
	for _, rel := range m.relationships {
		if rel.PatientID == patientID && rel.IsPrimaryDoctor {
			return rel, nil
		}
	}
	return nil, nil
}

func (m *mockRelationshipDir) FindBetweenUsers(_ context.Context, a, b uuid.UUID) (*relationship.Relationship, error) {
	for _, rel := range m.relationships {
		if (rel.DoctorID == a && rel.PatientID == b) || (rel.DoctorID == b && rel.PatientID == a) {
			return rel, nil
		}
	}
	return nil, nil
}

func (m *mockRelationshipDir) ListDoctorIDs(_ context.Context, patientID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, rel := range m.relationships {
		if rel.PatientID == patientID {
			ids = append(ids, rel.DoctorID)
		}
	}
	return ids, nil
}

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

type mockAlerts struct {
	recordedInteractions  []*notification.InteractionNotification
	publishedInteractions []*notification.InteractionNotification
	recordedResponses     []*notification.DoctorResponseNotification
	publishedResponses    []*notification.DoctorResponseNotification
}

func (m *mockAlerts) RecordInteraction(_ context.Context, n *notification.InteractionNotification) error {
	m.recordedInteractions = append(m.recordedInteractions, n)
	return nil
}

func (m *mockAlerts) PublishInteraction(_ context.Context, n *notification.InteractionNotification) {
	m.publishedInteractions = append(m.publishedInteractions, n)
}

func (m *mockAlerts) RecordDoctorResponse(_ context.Context, n *notification.DoctorResponseNotification) error {
	m.recordedResponses = append(m.recordedResponses, n)
	return nil
}

func (m *mockAlerts) PublishDoctorResponse(_ context.Context, n *notification.DoctorResponseNotification) {
	m.publishedResponses = append(m.publishedResponses, n)
}

type mockPublisher struct {
	events map[uuid.UUID][]ws.Event
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

type fixture struct {
	svc      *Service
	items    *mockItemRepo
	requests *mockRequestRepo
	checker  *mockChecker
	rels     *mockRelationshipDir
	alerts   *mockAlerts
	pub      *mockPublisher
}

func newFixture(withPrimary bool) *fixture {
	items := newMockItemRepo()
	requests := newMockRequestRepo()
	checker := &mockChecker{pairs: make(map[string]interaction.PairResult)}
	rels := &mockRelationshipDir{}
	if withPrimary {
		rels.relationships = append(rels.relationships, &relationship.Relationship{
			ID: uuid.New(), DoctorID: testDoctorID, PatientID: testPatientID, IsPrimaryDoctor: true,
		})
	}
	users := &mockUserDirectory{users: map[uuid.UUID]*identity.User{
		testDoctorID:  {ID: testDoctorID, FullName: "Dr Smith", Role: identity.RoleDoctor},
		testPatientID: {ID: testPatientID, FullName: "Pat Jones", Role: identity.RolePatient},
	}}
	alerts := &mockAlerts{}
	pub := &mockPublisher{events: make(map[uuid.UUID][]ws.Event)}
	svc := NewService(items, requests, checker, rels, users, alerts, passthroughTx, pub, zerolog.Nop())
	return &fixture{svc: svc, items: items, requests: requests, checker: checker, rels: rels, alerts: alerts, pub: pub}
}

func (f *fixture) seedPair(a, b string, sev interaction.CoarseSeverity, desc string) {
	fst, snd := interaction.PairKey(a, b)
	f.checker.pairs[fst+"|"+snd] = interaction.PairResult{Severity: sev, Description: desc}
}

func (f *fixture) seedActiveItem(name string) *Item {
	item := &Item{
		UserID:         testPatientID,
		Name:           name,
		Dosage:         "1 tablet",
		Frequency:      Frequency{Value: 1, Unit: FrequencyDays},
		FirstTake:      time.Now(),
		SupplyAmount:   30,
		Type:           ItemTypeSupplement,
		ApprovalStatus: ItemStatusApproved,
	}
	f.items.Create(context.Background(), item)
	return item
}

func testInput(name, itemType string) AddItemInput {
	return AddItemInput{
		Name:         name,
		Dosage:       "200mg",
		Frequency:    Frequency{Value: 8, Unit: FrequencyHours},
		FirstTake:    time.Now(),
		SupplyAmount: 60,
		Type:         itemType,
	}
}

func TestDecodeLegacyFrequencySeconds(t *testing.T) {
	cases := []struct {
		in   int
		want Frequency
	}{
		{8, Frequency{Value: 8, Unit: FrequencyHours}},
		{24, Frequency{Value: 1, Unit: FrequencyDays}},
		{168, Frequency{Value: 7, Unit: FrequencyDays}},
		{7200, Frequency{Value: 2, Unit: FrequencyHours}},
		{86400, Frequency{Value: 1, Unit: FrequencyDays}},
		{200, Frequency{Value: 1, Unit: FrequencyHours}},
	}
	for _, tc := range cases {
		if got := DecodeLegacyFrequencySeconds(tc.in); got != tc.want {
			t.Errorf("decode(%d) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestFrequencyUnmarshalJSON(t *testing.T) {
	var explicit Frequency
	if err := json.Unmarshal([]byte(`{"value":8,"unit":"hours"}`), &explicit); err != nil {
		t.Fatalf("explicit form rejected: %v", err)
	}
	if explicit != (Frequency{Value: 8, Unit: FrequencyHours}) {
		t.Errorf("explicit form decoded as %+v", explicit)
	}

	var legacy Frequency
	if err := json.Unmarshal([]byte(`7200`), &legacy); err != nil {
		t.Fatalf("legacy number rejected: %v", err)
	}
	if legacy != (Frequency{Value: 2, Unit: FrequencyHours}) {
		t.Errorf("legacy number decoded as %+v", legacy)
	}

	if err := json.Unmarshal([]byte(`"soon"`), &legacy); err == nil {
		t.Error("junk input accepted")
	}
}

func TestFrequencyValidate(t *testing.T) {
	if err := (Frequency{Value: 2, Unit: FrequencyHours}).Validate(); err != nil {
		t.Errorf("valid frequency rejected: %v", err)
	}
	if err := (Frequency{Value: 0, Unit: FrequencyHours}).Validate(); err == nil {
		t.Error("zero value accepted")
	}
	if err := (Frequency{Value: 1, Unit: "weeks"}).Validate(); err == nil {
		t.Error("unknown unit accepted")
	}
}

func TestAddSupplementNoInteractionActivatesImmediately(t *testing.T) {
	f := newFixture(true)

	result, err := f.svc.AddItem(context.Background(), testPatientID, testInput("vitamin c", ItemTypeSupplement))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ApprovalRequired {
		t.Fatal("expected direct activation")
	}
	if result.Item == nil || result.Item.ApprovalStatus != ItemStatusApproved {
		t.Fatalf("expected approved item, got %+v", result.Item)
	}
	if len(f.requests.requests) != 0 {
		t.Error("no approval request expected")
	}
}

func TestAddMedicationAlwaysRoutes(t *testing.T) {
	f := newFixture(true)

	result, err := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ApprovalRequired {
		t.Fatal("medication must require approval even with zero existing items")
	}
	req := result.ApprovalRequest
	if req.RequestReason != ReasonMedication {
		t.Errorf("expected medication reason, got %s", req.RequestReason)
	}
	if req.DoctorID != testDoctorID {
		t.Errorf("request addressed to %s, want primary doctor", req.DoctorID)
	}

	item, err := f.items.GetByID(context.Background(), req.ItemID)
	if err != nil {
		t.Fatalf("pending item missing: %v", err)
	}
	if item.ApprovalStatus != ItemStatusPending {
		t.Errorf("expected pending item, got %s", item.ApprovalStatus)
	}
}

func TestAddInteractingSupplementRoutes(t *testing.T) {
	f := newFixture(true)
	f.seedActiveItem("warfarin")
	f.seedPair("fish oil", "warfarin", interaction.CoarseMild, "bleeding risk")

	result, err := f.svc.AddItem(context.Background(), testPatientID, testInput("fish oil", ItemTypeSupplement))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ApprovalRequired {
		t.Fatal("interacting supplement must require approval")
	}
	req := result.ApprovalRequest
	if req.RequestReason != ReasonInteraction {
		t.Errorf("expected interaction reason, got %s", req.RequestReason)
	}
	if len(req.InteractionInfo) != 1 || req.InteractionInfo[0].Drug2 != "warfarin" {
		t.Errorf("unexpected interaction info: %+v", req.InteractionInfo)
	}
	if len(f.alerts.recordedInteractions) != 1 {
		t.Fatalf("expected one interaction alert for the primary doctor, got %d", len(f.alerts.recordedInteractions))
	}
	if f.alerts.recordedInteractions[0].DoctorID != testDoctorID {
		t.Errorf("alert addressed to %s", f.alerts.recordedInteractions[0].DoctorID)
	}
	if len(f.alerts.publishedInteractions) != 1 {
		t.Errorf("expected the stored alert pushed once, got %d", len(f.alerts.publishedInteractions))
	}
}

func TestAddRoutedWithoutPrimaryDoctorConflicts(t *testing.T) {
	f := newFixture(false)

	_, err := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(f.items.items) != 0 {
		t.Error("no item should be created without a primary doctor")
	}
}

func TestPendingItemsExcludedFromChecks(t *testing.T) {
	f := newFixture(true)
	f.seedPair("fish oil", "warfarin", interaction.CoarseStrong, "bleeding risk")

	// warfarin sits in the list as a pending medication, awaiting approval.
	if _, err := f.svc.AddItem(context.Background(), testPatientID, testInput("warfarin", ItemTypeMedication)); err != nil {
		t.Fatalf("seed add failed: %v", err)
	}

	result, err := f.svc.AddItem(context.Background(), testPatientID, testInput("fish oil", ItemTypeSupplement))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ApprovalRequired {
		t.Fatal("pending items must not count toward interaction routing")
	}
}

func TestRespondApproveActivatesItem(t *testing.T) {
	f := newFixture(true)
	added, err := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	notes := "fine with current dosage"

	req, err := f.svc.Respond(context.Background(), testDoctorID, added.ApprovalRequest.ID, true, &notes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusApproved {
		t.Errorf("expected approved, got %s", req.Status)
	}

	item, err := f.items.GetByID(context.Background(), req.ItemID)
	if err != nil {
		t.Fatalf("item missing after approval: %v", err)
	}
	if item.ApprovalStatus != ItemStatusApproved {
		t.Errorf("expected active item, got %s", item.ApprovalStatus)
	}

	if len(f.alerts.recordedResponses) != 1 {
		t.Fatalf("expected exactly one response notification, got %d", len(f.alerts.recordedResponses))
	}
	n := f.alerts.recordedResponses[0]
	if n.ResponseType != notification.ResponseApproved || n.PatientID != testPatientID {
		t.Errorf("unexpected notification: %+v", n)
	}
	if n.DoctorNotes == nil || *n.DoctorNotes != notes {
		t.Errorf("doctor notes not carried: %+v", n.DoctorNotes)
	}
}

func TestRespondRejectDiscardsItem(t *testing.T) {
	f := newFixture(true)
	added, err := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	req, err := f.svc.Respond(context.Background(), testDoctorID, added.ApprovalRequest.ID, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Status != StatusRejected {
		t.Errorf("expected rejected, got %s", req.Status)
	}
	if _, err := f.items.GetByID(context.Background(), req.ItemID); !apperror.IsNotFound(err) {
		t.Error("rejected pending item should be gone")
	}
	if len(f.alerts.recordedResponses) != 1 || f.alerts.recordedResponses[0].ResponseType != notification.ResponseRejected {
		t.Errorf("expected one rejected notification, got %+v", f.alerts.recordedResponses)
	}
}

func TestRespondFailedTransactionPublishesNothing(t *testing.T) {
	f := newFixture(true)
	added, err := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	f.pub.events = make(map[uuid.UUID][]ws.Event)
	f.svc.tx = func(ctx context.Context, fn func(ctx context.Context) error) error {
		_ = fn(ctx)
		return errors.New("commit failed")
	}

	if _, err := f.svc.Respond(context.Background(), testDoctorID, added.ApprovalRequest.ID, true, nil); err == nil {
		t.Fatal("expected transaction error to surface")
	}
	if len(f.alerts.publishedResponses) != 0 {
		t.Error("no response push after a failed transaction")
	}
	if len(f.pub.events[testPatientID]) != 0 || len(f.pub.events[testDoctorID]) != 0 {
		t.Errorf("no events after a failed transaction, got %+v", f.pub.events)
	}
}

func TestRespondTwiceConflicts(t *testing.T) {
	f := newFixture(true)
	added, _ := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))

	if _, err := f.svc.Respond(context.Background(), testDoctorID, added.ApprovalRequest.ID, true, nil); err != nil {
		t.Fatalf("first respond failed: %v", err)
	}
	_, err := f.svc.Respond(context.Background(), testDoctorID, added.ApprovalRequest.ID, false, nil)
	if !apperror.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRespondWrongDoctorNotFound(t *testing.T) {
	f := newFixture(true)
	added, _ := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))

	_, err := f.svc.Respond(context.Background(), uuid.New(), added.ApprovalRequest.ID, true, nil)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelDeletesRequestAndItem(t *testing.T) {
	f := newFixture(true)
	added, _ := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))

	if err := f.svc.Cancel(context.Background(), testPatientID, added.ApprovalRequest.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.requests.requests) != 0 {
		t.Error("request should be deleted")
	}
	if len(f.items.items) != 0 {
		t.Error("pending item should be deleted")
	}
}

func TestCancelByOtherPatientNotFound(t *testing.T) {
	f := newFixture(true)
	added, _ := f.svc.AddItem(context.Background(), testPatientID, testInput("ibuprofen", ItemTypeMedication))

	err := f.svc.Cancel(context.Background(), uuid.New(), added.ApprovalRequest.ID)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateItemOwnershipEnforced(t *testing.T) {
	f := newFixture(true)
	item := f.seedActiveItem("vitamin c")

	_, err := f.svc.UpdateItem(context.Background(), uuid.New(), item.ID, UpdateItemInput{
		Dosage:       "500mg",
		Frequency:    Frequency{Value: 1, Unit: FrequencyDays},
		SupplyAmount: 10,
	})
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for non-owner, got %v", err)
	}

	updated, err := f.svc.UpdateItem(context.Background(), testPatientID, item.ID, UpdateItemInput{
		Dosage:       "500mg",
		Frequency:    Frequency{Value: 12, Unit: FrequencyHours},
		SupplyAmount: 10,
	})
	if err != nil {
		t.Fatalf("owner update failed: %v", err)
	}
	if updated.Dosage != "500mg" || updated.Frequency.Value != 12 {
		t.Errorf("update not applied: %+v", updated)
	}
}

func TestListPatientItemsRequiresRelationship(t *testing.T) {
	f := newFixture(true)
	f.seedActiveItem("vitamin c")
	med := f.seedActiveItem("warfarin")
	med.Type = ItemTypeMedication

	view, err := f.svc.ListPatientItems(context.Background(), testDoctorID, testPatientID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Total != 2 || view.SupplementCount != 1 || view.MedicationCount != 1 {
		t.Errorf("unexpected split: %+v", view)
	}

	if _, err := f.svc.ListPatientItems(context.Background(), uuid.New(), testPatientID); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for unconnected doctor, got %v", err)
	}
}

func TestItemEventsFanOutToDoctors(t *testing.T) {
	f := newFixture(true)

	if _, err := f.svc.AddItem(context.Background(), testPatientID, testInput("vitamin c", ItemTypeSupplement)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	var patientSaw, doctorSaw bool
	for _, e := range f.pub.events[testPatientID] {
		if e.Type == ws.EventItemListUpdated {
			patientSaw = true
		}
	}
	for _, e := range f.pub.events[testDoctorID] {
		if e.Type == ws.EventPatientItemsUpdated {
			doctorSaw = true
		}
	}
	if !patientSaw {
		t.Error("patient should see item.list.updated")
	}
	if !doctorSaw {
		t.Error("connected doctor should see patient.items.updated")
	}
}
