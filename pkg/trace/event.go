package trace

import "strings"

// Condition kinds as recorded by the instrumenter. Kinds outside this set
// (e.g. ternaries) are carried through verbatim and weighted like IF.
const (
	KindLoop    = "LOOP"
	KindIf      = "IF"
	KindCase    = "CASE"
	KindDefault = "DEFAULT"
)

// Event is one observed evaluation of a branch/loop/case condition.
// Events are produced by the runtime log and never mutated after decode.
type Event struct {
	Func     string `json:"func,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	CondHash string `json:"cond_hash"`
	CondNorm string `json:"cond_norm"`
	CondKind string `json:"cond_kind"`
	Val      bool   `json:"val"`
	NormFlip bool   `json:"norm_flip"`
}

// Pair is one (semantic id, effective value) step of a condition sequence.
type Pair struct {
	SID string
	Val bool
}

// SID derives the path-insensitive semantic id of a condition:
// uppercased kind joined with the normalized descriptor. Two conditions
// with the same sid are the same decision point regardless of which
// static chain they appear in.
func SID(kind, norm string) string {
	return strings.ToUpper(kind) + "\t" + norm
}

// SID returns the semantic id of the event's condition.
func (e Event) SID() string {
	return SID(e.CondKind, e.CondNorm)
}

// EffectiveVal is the boolean compared against static truth: the raw
// outcome XOR the normalization flip. Static chains record normalized
// (post-flip) expected values, so this must be used instead of Val when
// matching.
func (e Event) EffectiveVal() bool {
	return e.Val != e.NormFlip
}

// KindWeight is the structural significance of a condition kind. Loop
// entry decisions outweigh plain branches; a single case label carries
// the least.
func KindWeight(kind string) float64 {
	switch strings.ToUpper(kind) {
	case KindLoop:
		return 2.0
	case KindIf:
		return 1.0
	case KindCase, KindDefault:
		return 0.5
	default:
		return 1.0
	}
}

// Pairs converts events to their (sid, effective value) sequence together
// with the parallel kind sequence.
func Pairs(events []Event) ([]Pair, []string) {
	pairs := make([]Pair, len(events))
	kinds := make([]string, len(events))
	for i, ev := range events {
		pairs[i] = Pair{SID: ev.SID(), Val: ev.EffectiveVal()}
		kinds[i] = ev.CondKind
	}
	return pairs, kinds
}
