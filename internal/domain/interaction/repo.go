package interaction

import "context"

// Repository is the pairwise severity cache. GetPair returns (nil, nil) on
// a cache miss so callers can distinguish "never looked up" from errors.
type Repository interface {
	GetPair(ctx context.Context, fstDrug, sndDrug string) (*Interaction, error)
	Upsert(ctx context.Context, in *Interaction) error
}
