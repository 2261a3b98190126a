package interaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/supplemate/api/internal/platform/apperror"
)

// -- Mocks --

type mockRepo struct {
	pairs   map[string]*Interaction
	upserts int
}

func newMockRepo() *mockRepo {
	return &mockRepo{pairs: make(map[string]*Interaction)}
}

func pairID(fst, snd string) string { return fst + "|" + snd }

func (m *mockRepo) GetPair(_ context.Context, fst, snd string) (*Interaction, error) {
	return m.pairs[pairID(fst, snd)], nil
}

func (m *mockRepo) Upsert(_ context.Context, in *Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	in.LastUpdated = time.Now()
	m.pairs[pairID(in.FstDrug, in.SndDrug)] = in
	m.upserts++
	return nil
}

type mockSource struct {
	entries []SourceInteraction
	err     error
	calls   int
}

func (m *mockSource) FetchInteractions(_ context.Context, drug string, checking map[string]bool) ([]SourceInteraction, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func newTestService(repo *mockRepo, source *mockSource) *Service {
	return NewService(repo, source, zerolog.Nop())
}

// -- Tests --

func TestCheckPairCacheMissFetchesAndCaches(t *testing.T) {
	repo := newMockRepo()
	source := &mockSource{entries: []SourceInteraction{
		{FstDrug: "omega3", SndDrug: "warfarin", Severity: SeveritySevere, Description: "Increased bleeding risk"},
	}}
	svc := newTestService(repo, source)

	result, err := svc.CheckPair(context.Background(), "Warfarin", "Fish Oil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Severity != CoarseStrong {
		t.Errorf("expected strong, got %s", result.Severity)
	}
	if result.Source != SourceFresh {
		t.Errorf("expected first resolve tagged %s, got %q", SourceFresh, result.Source)
	}
	if source.calls != 1 {
		t.Errorf("expected 1 source call, got %d", source.calls)
	}
	if repo.upserts != 1 {
		t.Errorf("expected result cached, got %d upserts", repo.upserts)
	}

	// Second check must be served from cache and say so.
	second, err := svc.CheckPair(context.Background(), "fish-oil", "warfarin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Source != SourceCache {
		t.Errorf("expected second resolve tagged %s, got %q", SourceCache, second.Source)
	}
	if source.calls != 1 {
		t.Errorf("expected cache hit, source called %d times", source.calls)
	}
}

func TestCheckPairNegativeResultCached(t *testing.T) {
	repo := newMockRepo()
	source := &mockSource{} // source knows nothing about this pair
	svc := newTestService(repo, source)

	result, err := svc.CheckPair(context.Background(), "vitamin c", "zinc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Severity != CoarseNone {
		t.Errorf("expected none, got %s", result.Severity)
	}
	if repo.upserts != 1 {
		t.Errorf("expected negative result cached, got %d upserts", repo.upserts)
	}

	svc.CheckPair(context.Background(), "zinc", "vitamin c")
	if source.calls != 1 {
		t.Errorf("negative cache not honored, source called %d times", source.calls)
	}
}

func TestCheckPairSourceFailureCachedAsNone(t *testing.T) {
	repo := newMockRepo()
	source := &mockSource{err: apperror.ExternalSource(errors.New("timeout"), "fetch")}
	svc := newTestService(repo, source)

	result, err := svc.CheckPair(context.Background(), "warfarin", "ginkgo")
	if err != nil {
		t.Fatalf("source failure must not surface, got %v", err)
	}
	if result.Severity != CoarseNone {
		t.Errorf("expected none on source failure, got %s", result.Severity)
	}
	if repo.upserts != 1 {
		t.Errorf("expected failed lookup cached as none, got %d upserts", repo.upserts)
	}
	cached := repo.pairs[pairID("ginkgo", "warfarin")]
	if cached == nil || cached.Severity != SeverityNone {
		t.Fatalf("expected severity none row written, got %+v", cached)
	}

	// Next check is served from the cached row, not the source.
	second, err := svc.CheckPair(context.Background(), "warfarin", "ginkgo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Source != SourceCache {
		t.Errorf("expected cached resolve, got source %q", second.Source)
	}
	if source.calls != 1 {
		t.Errorf("expected no retry after cached failure, got %d calls", source.calls)
	}
}

func TestCheckPairSamePairAfterNormalization(t *testing.T) {
	repo := newMockRepo()
	source := &mockSource{}
	svc := newTestService(repo, source)

	result, err := svc.CheckPair(context.Background(), "Fish Oil", "omega-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Severity != CoarseNone {
		t.Errorf("expected none for self pair, got %s", result.Severity)
	}
	if source.calls != 0 {
		t.Error("self pair must not reach the source")
	}
}

func TestCheckPairBlankNames(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockSource{})
	if _, err := svc.CheckPair(context.Background(), " ", "zinc"); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCheckPairUnknownSeverityCoarsensToNone(t *testing.T) {
	repo := newMockRepo()
	repo.Upsert(context.Background(), &Interaction{
		FstDrug: "ginger", SndDrug: "zinc", Severity: SeverityUnknown, Description: "unclear",
	})
	svc := newTestService(repo, &mockSource{})

	result, err := svc.CheckPair(context.Background(), "ginger", "zinc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Severity != CoarseNone {
		t.Errorf("expected unknown to coarsen to none, got %s", result.Severity)
	}
	if result.Description != "" {
		t.Error("none results must not carry a description")
	}
}

func TestCheckAgainstListAggregatesMax(t *testing.T) {
	repo := newMockRepo()
	repo.Upsert(context.Background(), &Interaction{
		FstDrug: "omega3", SndDrug: "warfarin", Severity: SeverityMild, Description: "minor",
	})
	repo.Upsert(context.Background(), &Interaction{
		FstDrug: "stjohnswort", SndDrug: "warfarin", Severity: SeveritySevere, Description: "major",
	})
	svc := newTestService(repo, &mockSource{})

	results, worst, err := svc.CheckAgainstList(context.Background(), "warfarin",
		[]string{"fish oil", "St. John's Wort", "vitamin c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if worst != CoarseStrong {
		t.Errorf("expected strong overall, got %s", worst)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 interacting pairs, got %d", len(results))
	}
}

func TestCheckAgainstListSkipsDuplicates(t *testing.T) {
	repo := newMockRepo()
	source := &mockSource{}
	svc := newTestService(repo, source)

	_, _, err := svc.CheckAgainstList(context.Background(), "warfarin",
		[]string{"fish oil", "omega-3", "Fish-Oil"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("expected duplicates collapsed to one lookup, got %d", source.calls)
	}
}

func TestGetCachedPairMissIs404(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockSource{})
	_, err := svc.GetCachedPair(context.Background(), "warfarin", "zinc")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseSourceSeverity(t *testing.T) {
	cases := map[string]Severity{
		"Severe":          SeveritySevere,
		"contraindicated": SeveritySevere,
		"Moderate":        SeverityModerate,
		"mild":            SeverityMild,
		"Minor":           SeverityMild,
		"see notes":       SeverityUnknown,
		"":                SeverityUnknown,
	}
	for raw, want := range cases {
		if got := ParseSourceSeverity(raw); got != want {
			t.Errorf("ParseSourceSeverity(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestSeverityCoarse(t *testing.T) {
	cases := map[Severity]CoarseSeverity{
		SeveritySevere:   CoarseStrong,
		SeverityModerate: CoarseStrong,
		SeverityMild:     CoarseMild,
		SeverityUnknown:  CoarseNone,
		SeverityNone:     CoarseNone,
	}
	for s, want := range cases {
		if got := s.Coarse(); got != want {
			t.Errorf("%s.Coarse() = %s, want %s", s, got, want)
		}
	}
}
