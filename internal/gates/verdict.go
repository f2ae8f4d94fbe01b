// Package gates implements the eight-gate risk pipeline (§4.3). Gate
// evaluation order matters: it prevents stale market data from
// poisoning the SpreadShock gate's internal EWMA, which is only updated
// once gates 1-4 have passed.
package gates

import "github.com/shopspring/decimal"

// VerdictKind is the outcome category of a gate evaluation.
type VerdictKind int

const (
	Pass VerdictKind = iota
	Block
	ReduceSize
)

// GateVerdict is the structured result of evaluating the pipeline.
// Logging is edge-triggered by the caller (only block<->pass transitions
// produce warn-level lines) to prevent log storms; this type carries
// enough detail for that comparison.
type GateVerdict struct {
	Kind   VerdictKind
	Gate   string
	Reason string
	// Factor is populated only for ReduceSize; it multiplies the
	// suggested order size.
	Factor decimal.Decimal
	// RequireReconnect is set by TimeRegression's non-holding branch.
	RequireReconnect bool
	// CancelAll is set by ParamChange/Halt's non-holding branch.
	CancelAll bool
	// StopMarket is set by TimeRegression/ParamChange/Halt's holding branch (reduce + stop).
	StopMarket bool
}

func passVerdict() GateVerdict { return GateVerdict{Kind: Pass} }

func blockVerdict(gate, reason string) GateVerdict {
	return GateVerdict{Kind: Block, Gate: gate, Reason: reason}
}

func reduceVerdict(gate, reason string, factor decimal.Decimal) GateVerdict {
	return GateVerdict{Kind: ReduceSize, Gate: gate, Reason: reason, Factor: factor}
}

// IsBlocking reports whether the verdict should prevent the signal from
// proceeding entirely.
func (v GateVerdict) IsBlocking() bool { return v.Kind == Block }
