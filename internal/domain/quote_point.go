package domain

// QuotePoint is one sampled observation of bonding-curve pricing,
// recorded by the quote watcher for offline analysis.
type QuotePoint struct {
	SeasonID    uint64
	SampledAt   int64 // unix millis
	TotalSupply uint64
	BasePrice   float64 // token units for one ticket, pre-fee
	BuyPrice    float64 // with buy fee applied
	SellPrice   float64 // with sell fee applied
}
