// Package match ranks the static chains most similar to a runtime
// condition trace when no chain matches it exactly.
package match

import (
	"math"
	"sort"

	"github.com/condlab/chainmatch/pkg/align"
	"github.com/condlab/chainmatch/pkg/static"
	"github.com/condlab/chainmatch/pkg/trace"
)

// Options tune a match call. Zero values fall back to the defaults.
type Options struct {
	TopK          int     `json:"topk" yaml:"topk"`
	Threshold     float64 `json:"threshold" yaml:"threshold"`
	PrefilterSize int     `json:"prefilter" yaml:"prefilter"`
}

const (
	DefaultTopK          = 3
	DefaultThreshold     = 0.6
	DefaultPrefilterSize = 20

	scoreEpsilon = 1e-6
)

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		TopK:          DefaultTopK,
		Threshold:     DefaultThreshold,
		PrefilterSize: DefaultPrefilterSize,
	}
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.PrefilterSize <= 0 {
		o.PrefilterSize = DefaultPrefilterSize
	}
	return o
}

// Candidate is one ranked approximate match.
type Candidate struct {
	Source  string           `json:"source"`
	ChainID int              `json:"chain_id"`
	Score   float64          `json:"score"`
	LCP     int              `json:"lcp"`
	LCS     int              `json:"lcs"`
	Diffs   []align.DiffStep `json:"diffs"`
}

// Matcher scores runtime traces against the static chains of one index.
// It holds no mutable state and is safe for concurrent use.
type Matcher struct {
	index *static.Index
}

// New creates a Matcher over a built index.
func New(index *static.Index) *Matcher {
	return &Matcher{index: index}
}

// Match returns up to opts.TopK candidate chains under funcHash scoring at
// least opts.Threshold, best first. Matching never crosses function
// boundaries: an empty or unknown funcHash yields no candidates. The
// events are expected to be an already-compressed invocation trace;
// effective values are derived here regardless.
func (m *Matcher) Match(funcHash string, events []trace.Event, opts Options) []Candidate {
	opts = opts.withDefaults()

	if funcHash == "" || m.index == nil {
		return nil
	}
	chains := m.index.Chains(funcHash)
	if len(chains) == 0 {
		return nil
	}

	runSeq, runKinds := trace.Pairs(events)
	runSIDs := make(map[string]struct{}, len(runSeq))
	for _, p := range runSeq {
		runSIDs[p.SID] = struct{}{}
	}

	chains = prefilter(runSIDs, chains, opts.PrefilterSize)
	if len(chains) == 0 {
		return nil
	}

	runWeight := 0.0
	for _, k := range runKinds {
		runWeight += trace.KindWeight(k)
	}

	type scored struct {
		score float64
		cand  Candidate
	}
	var results []scored
	for _, ch := range chains {
		raw, diffs := align.Align(runSeq, runKinds, ch.SIDSeq, ch.KindSeq)

		// Optimistic upper bound: a perfect alignment of the lighter
		// sequence. Keeps the normalized score in [0,1].
		maxPossible := 2.0 * math.Min(runWeight, ch.WeightSum)
		if maxPossible < scoreEpsilon {
			maxPossible = scoreEpsilon
		}
		norm := clamp01(raw / maxPossible)

		lcp := align.LCPLen(runSeq, ch.SIDSeq)
		lcs := align.LCSLen(runSeq, ch.SIDSeq)
		lmin := len(runSeq)
		if len(ch.SIDSeq) < lmin {
			lmin = len(ch.SIDSeq)
		}
		if lmin < 1 {
			lmin = 1
		}

		score := 0.7*norm + 0.2*float64(lcp)/float64(lmin) + 0.1*float64(lcs)/float64(lmin)
		if score < opts.Threshold {
			continue
		}
		results = append(results, scored{
			score: score,
			cand: Candidate{
				Source:  ch.Source,
				ChainID: ch.ChainID,
				Score:   math.Round(score*10000) / 10000,
				LCP:     lcp,
				LCS:     lcs,
				Diffs:   diffs,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	out := make([]Candidate, len(results))
	for i, r := range results {
		out[i] = r.cand
	}
	return out
}

// prefilter keeps the top chains by Jaccard similarity between the runtime
// sid set and each chain's sid set, bounding the alignment cost on
// functions with many chains. Ties keep the original chain order.
func prefilter(runSIDs map[string]struct{}, chains []*static.Chain, top int) []*static.Chain {
	type jaccardChain struct {
		score float64
		chain *static.Chain
	}
	scored := make([]jaccardChain, 0, len(chains))
	for _, ch := range chains {
		inter := 0
		for sid := range runSIDs {
			if _, ok := ch.SIDSet[sid]; ok {
				inter++
			}
		}
		union := len(runSIDs) + len(ch.SIDSet) - inter
		if union < 1 {
			union = 1
		}
		scored = append(scored, jaccardChain{score: float64(inter) / float64(union), chain: ch})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > top {
		scored = scored[:top]
	}
	out := make([]*static.Chain, len(scored))
	for i, s := range scored {
		out[i] = s.chain
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
