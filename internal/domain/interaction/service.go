package interaction

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/supplemate/api/internal/platform/apperror"
)

const noInteractionDescription = "No interactions found between these drugs"

// Service resolves pairwise interaction severity with a cache-aside
// strategy: the database is consulted first, and only misses reach the
// external source. Misses are cached whichever way they resolve, so each
// pair is fetched at most once. A failing source is coerced to severity
// none, cached like any other result, and never surfaced to callers.
type Service struct {
	repo   Repository
	source Source
	logger zerolog.Logger
}

func NewService(repo Repository, source Source, logger zerolog.Logger) *Service {
	return &Service{repo: repo, source: source, logger: logger}
}

// CheckPair resolves the severity between two named drugs.
func (s *Service) CheckPair(ctx context.Context, drug1, drug2 string) (*PairResult, error) {
	if strings.TrimSpace(drug1) == "" || strings.TrimSpace(drug2) == "" {
		return nil, apperror.Validation("both drug names are required")
	}

	fst, snd := PairKey(drug1, drug2)
	if fst == snd {
		// A substance does not interact with itself.
		return &PairResult{Drug1: drug1, Drug2: drug2, Severity: CoarseNone, Source: SourceCache}, nil
	}

	in, fromCache, err := s.resolvePair(ctx, fst, snd)
	if err != nil {
		return nil, err
	}

	result := &PairResult{
		Drug1:    drug1,
		Drug2:    drug2,
		Severity: in.Severity.Coarse(),
		Source:   SourceFresh,
	}
	if fromCache {
		result.Source = SourceCache
	}
	if result.Severity != CoarseNone {
		result.Description = in.Description
	}
	return result, nil
}

// CheckAgainstList resolves newDrug against every name in existing and
// returns the interacting pairs plus the worst coarse severity seen.
func (s *Service) CheckAgainstList(ctx context.Context, newDrug string, existing []string) ([]PairResult, CoarseSeverity, error) {
	if strings.TrimSpace(newDrug) == "" {
		return nil, CoarseNone, apperror.Validation("drug name is required")
	}

	worst := SeverityNone
	var results []PairResult
	seen := make(map[string]bool)

	for _, other := range existing {
		fst, snd := PairKey(newDrug, other)
		if fst == snd || seen[fst+"|"+snd] {
			continue
		}
		seen[fst+"|"+snd] = true

		in, fromCache, err := s.resolvePair(ctx, fst, snd)
		if err != nil {
			return nil, CoarseNone, err
		}
		if in.Severity.Coarse() == CoarseNone {
			continue
		}

		src := SourceFresh
		if fromCache {
			src = SourceCache
		}
		worst = MaxSeverity(worst, in.Severity)
		results = append(results, PairResult{
			Drug1:       newDrug,
			Drug2:       other,
			Severity:    in.Severity.Coarse(),
			Description: in.Description,
			Source:      src,
		})
	}

	return results, worst.Coarse(), nil
}

// GetCachedPair looks a pair up in the cache only; it never triggers a
// fetch. Unknown pairs are a 404.
func (s *Service) GetCachedPair(ctx context.Context, drug1, drug2 string) (*Interaction, error) {
	if strings.TrimSpace(drug1) == "" || strings.TrimSpace(drug2) == "" {
		return nil, apperror.Validation("both drug names are required")
	}
	fst, snd := PairKey(drug1, drug2)
	in, err := s.repo.GetPair(ctx, fst, snd)
	if err != nil {
		return nil, err
	}
	if in == nil {
		return nil, apperror.NotFound("no cached interaction for this pair")
	}
	return in, nil
}

// resolvePair returns the row for a normalized ordered pair and whether it
// came from the cache. On a miss the source is consulted and the result is
// written back so the pair never needs fetching again; an unreachable
// source is coerced to severity none and cached the same way.
func (s *Service) resolvePair(ctx context.Context, fst, snd string) (*Interaction, bool, error) {
	cached, err := s.repo.GetPair(ctx, fst, snd)
	if err != nil {
		return nil, false, err
	}
	if cached != nil {
		return cached, true, nil
	}

	in := &Interaction{
		FstDrug:     fst,
		SndDrug:     snd,
		Severity:    SeverityNone,
		Description: noInteractionDescription,
	}

	entries, err := s.source.FetchInteractions(ctx, fst, map[string]bool{snd: true})
	if err != nil {
		if !apperror.IsExternalSource(err) {
			return nil, false, err
		}
		s.logger.Warn().Err(err).Str("fst", fst).Str("snd", snd).
			Msg("interaction source unavailable, caching as no interaction")
	} else {
		for _, e := range entries {
			if e.FstDrug == fst && e.SndDrug == snd {
				in.Severity = e.Severity
				in.Description = e.Description
				break
			}
		}
	}

	if err := s.repo.Upsert(ctx, in); err != nil {
		return nil, false, err
	}
	return in, false, nil
}
