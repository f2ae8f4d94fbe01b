package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BestBidOffer is the latest top-of-book quote for one market, as last
// published on the market-data WS channel.
type BestBidOffer struct {
	Bid     Price
	BidSize Size
	Ask     Price
	AskSize Size
	// ReceivedAt is a monotonic local receipt timestamp, never the
	// exchange-reported time — staleness is always measured against the
	// clock that actually saw the message.
	ReceivedAt time.Time
}

// Mid returns the arithmetic mid of bid and ask.
func (b BestBidOffer) Mid() Price {
	return Price{b.Bid.Decimal.Add(b.Ask.Decimal).Div(decimal.NewFromInt(2))}
}

// OracleCtx is the latest oracle/mark context for one market.
type OracleCtx struct {
	OraclePrice Price
	MarkPrice   Price
	ReceivedAt  time.Time
}

// Snapshot is the aggregator's read-time view of one market: the latest
// BBO and oracle context plus the freshness classification derived from
// both receipt timestamps against a caller-supplied staleness budget.
type Snapshot struct {
	Key     MarketKey
	Bbo     BestBidOffer
	Oracle  OracleCtx
	Class   BboClass
	HasBbo  bool
	HasOracle bool
}

// Classify derives a BboClass for a snapshot's two independent feeds: Null
// when either feed has never been seen, Stale when either receipt is older
// than staleAfter, Fresh otherwise. Computed at read time, never cached,
// so a classification never outlives the tick that produced it.
func Classify(hasBbo, hasOracle bool, bboAge, oracleAge time.Duration, staleAfter time.Duration) BboClass {
	if !hasBbo || !hasOracle {
		return BboNull
	}
	if bboAge > staleAfter || oracleAge > staleAfter {
		return BboStale
	}
	return BboFresh
}
