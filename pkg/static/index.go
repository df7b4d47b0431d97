// Package static holds the per-session index of statically known
// condition chains, keyed by function hash. The index is built once from a
// metadata snapshot and is read-only afterwards; it may be shared across
// concurrent match calls without synchronization.
package static

import (
	"log/slog"

	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/trace"
)

// Chain is one statically possible path through a function, ready for
// matching: the authored (hash, value) sequence plus its semantic-id
// projection and the derived scoring aggregates.
type Chain struct {
	ChainID   int
	Source    string
	HashSeq   []meta.CondVal
	SIDSeq    []trace.Pair
	SIDSet    map[string]struct{}
	KindSeq   []string
	WeightSum float64
}

// NewChain derives SIDSet and WeightSum from the given sequences. They are
// exactly the distinct sids of sidSeq and the summed kind weights of kinds.
func NewChain(chainID int, source string, hashSeq []meta.CondVal, sidSeq []trace.Pair, kinds []string) *Chain {
	ch := &Chain{
		ChainID: chainID,
		Source:  source,
		HashSeq: hashSeq,
		SIDSeq:  sidSeq,
		SIDSet:  make(map[string]struct{}, len(sidSeq)),
		KindSeq: kinds,
	}
	for _, p := range sidSeq {
		ch.SIDSet[p.SID] = struct{}{}
	}
	for _, k := range kinds {
		ch.WeightSum += trace.KindWeight(k)
	}
	return ch
}

// Index maps function hash to its ordered static chains.
type Index struct {
	ByFunc map[string][]*Chain
}

// Build resolves every chain definition in the snapshot against the
// condition table. A chain with an unresolvable condition hash is dropped,
// but its ordinal chain-id slot is still consumed so sibling chain ids
// stay stable across snapshots with partial condition metadata.
func Build(m *meta.Meta) *Index {
	idx := &Index{ByFunc: map[string][]*Chain{}}
	dropped := 0
	for funcHash, defs := range m.ChainsByFunc {
		var out []*Chain
		for chainID, def := range defs {
			sidSeq := make([]trace.Pair, 0, len(def.Seq))
			kinds := make([]string, 0, len(def.Seq))
			ok := true
			for _, cv := range def.Seq {
				cond, found := m.ConditionsByHash[cv.Hash]
				if !found || cond.Norm == "" || cond.Kind == "" {
					ok = false
					break
				}
				sidSeq = append(sidSeq, trace.Pair{SID: trace.SID(cond.Kind, cond.Norm), Val: cv.Val})
				kinds = append(kinds, cond.Kind)
			}
			if !ok {
				dropped++
				continue
			}
			out = append(out, NewChain(chainID, def.Source, def.Seq, sidSeq, kinds))
		}
		if len(out) > 0 {
			idx.ByFunc[funcHash] = out
		}
	}
	if dropped > 0 {
		slog.Warn("dropped chains with unresolvable conditions", "count", dropped)
	}
	return idx
}

// Chains returns the chains known for a function hash, or nil.
func (idx *Index) Chains(funcHash string) []*Chain {
	return idx.ByFunc[funcHash]
}

// FuncCount is the number of functions with at least one usable chain.
func (idx *Index) FuncCount() int {
	return len(idx.ByFunc)
}

// ChainTotal is the number of usable chains across all functions.
func (idx *Index) ChainTotal() int {
	n := 0
	for _, chains := range idx.ByFunc {
		n += len(chains)
	}
	return n
}
