package filter

import (
	"context"
)

// MarketFilter checks if the track is available in the configured market.
type MarketFilter struct {
	market string
}

// NewMarketFilter creates a new MarketFilter with the specified market.
func NewMarketFilter(market string) *MarketFilter {
	return &MarketFilter{market: market}
}

func (f *MarketFilter) Name() string {
	return "market_filter"
}

func (f *MarketFilter) Description() string {
	return "Checks if the track is available in the configured market"
}

func (f *MarketFilter) ReturnCodes() []string {
	return []string{"market_restriction"}
}

func (f *MarketFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *MarketFilter) AppliesTo(target Target) bool {
	return target == TargetTrack
}

func (f *MarketFilter) Check(ctx context.Context, c Candidate, rules *Rules) Result {
	if f.market == "" || c.Track == nil {
		return Accept()
	}

	// Tracks without market data (e.g. reported by the player) are not restricted
	if c.Track.IsPlayable == nil && len(c.Track.Markets) == 0 {
		return Accept()
	}

	if !c.Track.IsAvailableInMarket(f.market) {
		return Reject("market_restriction")
	}
	return Accept()
}

func init() {
	Register("market_filter", func() Filter {
		return &MarketFilter{}
	})
}
