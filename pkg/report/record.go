// Package report assembles per-assertion records from framed log windows:
// compressed condition chains per invocation, exact static-chain matches,
// and approximate matches when exact matching yields none.
package report

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/condlab/chainmatch/pkg/ingest"
	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/trace"
)

// SlimCall is the reported shape of one invocation.
type SlimCall struct {
	InvocationID int64  `json:"invocation_id"`
	CallFile     string `json:"call_file,omitempty"`
	CallLine     int    `json:"call_line,omitempty"`
	CallExpr     string `json:"call_expr,omitempty"`
}

// SlimCond is the reported shape of one condition event.
type SlimCond struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	CondNorm string `json:"cond_norm"`
	CondHash string `json:"cond_hash"`
	CondKind string `json:"cond_kind"`
	Val      bool   `json:"val"`
	Flip     bool   `json:"flip"`
}

// ExactMatch is one static chain whose authored sequence equals the
// invocation's compressed effective sequence.
type ExactMatch struct {
	Source     string         `json:"source"`
	ChainID    int            `json:"chain_id"`
	CondHashes []meta.CondVal `json:"cond_hashes"`
}

// InvocationInfo carries per-invocation derived results. ApproxStatic is
// only populated when MatchedStatic is empty.
type InvocationInfo struct {
	FuncHash      string            `json:"func_hash,omitempty"`
	Signature     string            `json:"signature,omitempty"`
	MatchedStatic []ExactMatch      `json:"matched_static,omitempty"`
	ApproxStatic  []match.Candidate `json:"approx_static,omitempty"`
}

// Record is one per-assertion output line.
type Record struct {
	ID          string                    `json:"id"`
	Test        ingest.TestInfo           `json:"test"`
	Assertion   ingest.Assertion          `json:"assertion"`
	Prefix      []SlimCall                `json:"prefix"`
	OracleCalls []SlimCall                `json:"oracle_calls"`
	CondChains  map[string][]SlimCond     `json:"cond_chains"`
	Invocations map[string]InvocationInfo `json:"invocations"`
	Narrative   string                    `json:"narrative,omitempty"`
}

// Options tune record assembly.
type Options struct {
	DedupeConds bool
	Approx      bool
	ApproxOpts  match.Options
}

// Builder assembles records against one metadata snapshot. Safe for
// concurrent use; all referenced state is read-only.
type Builder struct {
	meta    *meta.Meta
	matcher *match.Matcher
	opts    Options
}

// NewBuilder creates a Builder. matcher may be nil when approximate
// matching is disabled.
func NewBuilder(m *meta.Meta, matcher *match.Matcher, opts Options) *Builder {
	return &Builder{meta: m, matcher: matcher, opts: opts}
}

// Build assembles the record for one assertion window. Each invocation's
// trace is loop-compressed before display and matching.
func (b *Builder) Build(w ingest.Window) Record {
	rec := Record{
		ID:          uuid.NewString(),
		Test:        w.Test,
		Assertion:   w.Assertion,
		Prefix:      slimCalls(w.Prefix),
		OracleCalls: slimCalls(w.OracleCalls),
		CondChains:  map[string][]SlimCond{},
		Invocations: map[string]InvocationInfo{},
	}

	for iid, conds := range w.Conds {
		comp := trace.Compress(conds)
		key := formatInt(iid)
		rec.CondChains[key] = b.slimConds(comp)

		info := b.deriveInvocation(comp)
		if info.FuncHash != "" || len(info.MatchedStatic) > 0 || len(info.ApproxStatic) > 0 {
			rec.Invocations[key] = info
		}
	}
	return rec
}

// deriveInvocation resolves the owning function and its chain matches from
// a compressed trace. Exact matches short-circuit approximate matching.
func (b *Builder) deriveInvocation(comp []trace.Event) InvocationInfo {
	var info InvocationInfo
	for _, ev := range comp {
		if ev.Func != "" {
			info.FuncHash = ev.Func
			break
		}
	}
	if info.FuncHash == "" || b.meta == nil {
		return info
	}
	if fn, ok := b.meta.FunctionsByHash[info.FuncHash]; ok && fn.Signature != "" {
		info.Signature = fn.Signature
	}

	rseq := make([]meta.CondVal, len(comp))
	for i, ev := range comp {
		rseq[i] = meta.CondVal{Hash: ev.CondHash, Val: ev.EffectiveVal()}
	}
	for chainID, ch := range b.meta.ChainsByFunc[info.FuncHash] {
		if condValsEqual(ch.Seq, rseq) {
			info.MatchedStatic = append(info.MatchedStatic, ExactMatch{
				Source:     ch.Source,
				ChainID:    chainID,
				CondHashes: ch.Seq,
			})
		}
	}

	if len(info.MatchedStatic) == 0 && b.opts.Approx && b.matcher != nil {
		info.ApproxStatic = b.matcher.Match(info.FuncHash, comp, b.opts.ApproxOpts)
	}
	return info
}

func (b *Builder) slimConds(comp []trace.Event) []SlimCond {
	out := make([]SlimCond, 0, len(comp))
	seen := map[string]struct{}{}
	for _, ev := range comp {
		if b.opts.DedupeConds {
			if _, dup := seen[ev.CondHash]; dup {
				continue
			}
			seen[ev.CondHash] = struct{}{}
		}
		out = append(out, SlimCond{
			File:     ev.File,
			Line:     ev.Line,
			CondNorm: ev.CondNorm,
			CondHash: ev.CondHash,
			CondKind: ev.CondKind,
			Val:      ev.Val,
			Flip:     ev.NormFlip,
		})
	}
	return out
}

func slimCalls(invs []ingest.Invocation) []SlimCall {
	out := make([]SlimCall, len(invs))
	for i, inv := range invs {
		out[i] = SlimCall{
			InvocationID: inv.InvocationID,
			CallFile:     inv.CallFile,
			CallLine:     inv.CallLine,
			CallExpr:     inv.CallExpr,
		}
	}
	return out
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func condValsEqual(a, b []meta.CondVal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
