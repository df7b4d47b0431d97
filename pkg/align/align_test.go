package align

import (
	"testing"

	"github.com/condlab/chainmatch/pkg/trace"
)

func seq(steps ...struct {
	sid  string
	val  bool
	kind string
}) ([]trace.Pair, []string) {
	pairs := make([]trace.Pair, len(steps))
	kinds := make([]string, len(steps))
	for i, s := range steps {
		pairs[i] = trace.Pair{SID: s.sid, Val: s.val}
		kinds[i] = s.kind
	}
	return pairs, kinds
}

func step(sid string, val bool, kind string) struct {
	sid  string
	val  bool
	kind string
} {
	return struct {
		sid  string
		val  bool
		kind string
	}{sid, val, kind}
}

func ops(diffs []DiffStep) []Op {
	out := make([]Op, len(diffs))
	for i, d := range diffs {
		out[i] = d.Op
	}
	return out
}

func opsEqual(a []Op, b ...Op) bool {
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

func TestAlignIdentical(t *testing.T) {
	pairs, kinds := seq(
		step("LOOP\ti<n", true, "LOOP"),
		step("IF\tx>0", false, "IF"),
		step("CASE\tv==1", true, "CASE"),
	)
	raw, diffs := Align(pairs, kinds, pairs, kinds)

	// all-keep, raw = 2.0 * weight sum = 2.0 * (2.0 + 1.0 + 0.5)
	if want := 7.0; raw != want {
		t.Errorf("raw score = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpKeep, OpKeep, OpKeep) {
		t.Errorf("diffs = %v, want all keep", ops(diffs))
	}
	for i, d := range diffs {
		if d.RunIdx == nil || *d.RunIdx != i || d.StIdx == nil || *d.StIdx != i {
			t.Errorf("step %d has indices %v/%v, want %d/%d", i, d.RunIdx, d.StIdx, i, i)
		}
	}
}

func TestAlignFlip(t *testing.T) {
	run, runKinds := seq(step("IF\ta", true, "IF"))
	st, stKinds := seq(step("IF\ta", false, "IF"))
	raw, diffs := Align(run, runKinds, st, stKinds)

	// flip on the diagonal: -0.5 * avg weight 1.0. Two gaps would cost -1.5.
	if want := -0.5; raw != want {
		t.Errorf("raw score = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpFlip) {
		t.Errorf("diffs = %v, want [flip]", ops(diffs))
	}
}

func TestAlignSubstitution(t *testing.T) {
	run, runKinds := seq(step("IF\ta", true, "IF"))
	st, stKinds := seq(step("IF\tb", true, "IF"))
	raw, diffs := Align(run, runKinds, st, stKinds)

	// subst -1.0*w beats del+ins -0.75*w-0.75*w = -1.5*w
	if want := -1.0; raw != want {
		t.Errorf("raw score = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpSubst) {
		t.Errorf("diffs = %v, want [subst]", ops(diffs))
	}
}

func TestAlignDeletion(t *testing.T) {
	run, runKinds := seq(
		step("IF\ta", true, "IF"),
		step("IF\tx", true, "IF"),
		step("IF\tb", false, "IF"),
	)
	st, stKinds := seq(
		step("IF\ta", true, "IF"),
		step("IF\tb", false, "IF"),
	)
	raw, diffs := Align(run, runKinds, st, stKinds)

	// keep + del + keep = 2.0 - 0.75 + 2.0
	if want := 3.25; raw != want {
		t.Errorf("raw score = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpKeep, OpDel, OpKeep) {
		t.Errorf("diffs = %v, want [keep del keep]", ops(diffs))
	}
	if diffs[1].RunIdx == nil || *diffs[1].RunIdx != 1 {
		t.Errorf("del step run index = %v, want 1", diffs[1].RunIdx)
	}
	if diffs[1].StIdx != nil {
		t.Errorf("del step carries a static index: %v", *diffs[1].StIdx)
	}
}

func TestAlignInsertion(t *testing.T) {
	run, runKinds := seq(step("IF\ta", true, "IF"))
	st, stKinds := seq(
		step("IF\ta", true, "IF"),
		step("LOOP\ti<n", false, "LOOP"),
	)
	raw, diffs := Align(run, runKinds, st, stKinds)

	// keep + ins(loop) = 2.0 - 0.75*2.0
	if want := 0.5; raw != want {
		t.Errorf("raw score = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpKeep, OpIns) {
		t.Errorf("diffs = %v, want [keep ins]", ops(diffs))
	}
}

func TestAlignEmptySequences(t *testing.T) {
	run, runKinds := seq(step("IF\ta", true, "IF"), step("LOOP\tl", true, "LOOP"))

	raw, diffs := Align(nil, nil, nil, nil)
	if raw != 0 || len(diffs) != 0 {
		t.Errorf("empty vs empty: raw=%v diffs=%v", raw, diffs)
	}

	raw, diffs = Align(run, runKinds, nil, nil)
	// pure deletion: -0.75*1.0 + -0.75*2.0
	if want := -2.25; raw != want {
		t.Errorf("run vs empty raw = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpDel, OpDel) {
		t.Errorf("run vs empty diffs = %v", ops(diffs))
	}

	raw, diffs = Align(nil, nil, run, runKinds)
	if want := -2.25; raw != want {
		t.Errorf("empty vs st raw = %v, want %v", raw, want)
	}
	if !opsEqual(ops(diffs), OpIns, OpIns) {
		t.Errorf("empty vs st diffs = %v", ops(diffs))
	}
}

func TestAlignTieBreakPrefersMatch(t *testing.T) {
	// Engineer a tie: one IF pair with the same sid but flipped value.
	// flip = -0.5 is strictly better than any gap path, but with subst on
	// different sids and weights chosen so candidates tie, match must win.
	run, runKinds := seq(step("CASE\ta", true, "CASE"))
	st, stKinds := seq(step("CASE\ta", false, "CASE"))
	_, diffs := Align(run, runKinds, st, stKinds)
	if !opsEqual(ops(diffs), OpFlip) {
		t.Errorf("diffs = %v, want [flip]", ops(diffs))
	}
}

func TestLCPLen(t *testing.T) {
	a := []trace.Pair{{SID: "x", Val: true}, {SID: "y", Val: false}, {SID: "z", Val: true}}
	b := []trace.Pair{{SID: "x", Val: true}, {SID: "y", Val: true}, {SID: "z", Val: true}}
	if got := LCPLen(a, b); got != 1 {
		t.Errorf("LCPLen = %d, want 1", got)
	}
	if got := LCPLen(a, a); got != 3 {
		t.Errorf("LCPLen identical = %d, want 3", got)
	}
	if got := LCPLen(a, nil); got != 0 {
		t.Errorf("LCPLen vs empty = %d, want 0", got)
	}
}

func TestLCSLen(t *testing.T) {
	a := []trace.Pair{{SID: "x", Val: true}, {SID: "y", Val: false}, {SID: "z", Val: true}}
	b := []trace.Pair{{SID: "y", Val: false}, {SID: "x", Val: true}, {SID: "z", Val: true}}
	if got := LCSLen(a, b); got != 2 {
		t.Errorf("LCSLen = %d, want 2", got)
	}
	if got := LCSLen(a, a); got != 3 {
		t.Errorf("LCSLen identical = %d, want 3", got)
	}
	if got := LCSLen(nil, b); got != 0 {
		t.Errorf("LCSLen empty = %d, want 0", got)
	}
}
