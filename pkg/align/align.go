// Package align implements weighted global sequence alignment between a
// runtime condition sequence and a static chain, Needleman-Wunsch style,
// with an explainable backtrace.
package align

import "github.com/condlab/chainmatch/pkg/trace"

// Op labels one step of an alignment backtrace.
type Op string

const (
	OpKeep  Op = "keep"  // same sid, same effective value
	OpFlip  Op = "flip"  // same sid, opposite effective value
	OpSubst Op = "subst" // different sids consumed together
	OpDel   Op = "del"   // runtime step absent from the static chain
	OpIns   Op = "ins"   // static step the runtime never exercised
)

// DiffStep is one step of the alignment, ordered from the start of both
// sequences. RunIdx/StIdx are indices into the runtime and static sequences
// and are nil when the op does not consume from that side.
type DiffStep struct {
	Op     Op   `json:"op"`
	RunIdx *int `json:"run_idx,omitempty"`
	StIdx  *int `json:"st_idx,omitempty"`
}

const (
	matchReward = 2.0
	flipCost    = -0.5
	substCost   = -1.0
	gapCost     = -0.75
)

type move uint8

const (
	moveNone move = iota
	moveMatch
	moveDel
	moveIns
)

// Align computes a weighted global alignment between the runtime sequence
// run (with parallel kinds runKinds) and the static sequence st (stKinds).
// The returned score is raw and unnormalized; callers divide by an
// optimistic upper bound before treating it as a similarity.
//
// Per cell the match/flip/subst transition is scored against the average
// kind weight of the two consumed steps, gaps against the consumed step's
// own weight. Ties are broken match over del over ins; this ordering is
// part of the output contract and must not change.
func Align(run []trace.Pair, runKinds []string, st []trace.Pair, stKinds []string) (float64, []DiffStep) {
	n, m := len(run), len(st)

	score := make([][]float64, n+1)
	prev := make([][]move, n+1)
	for i := 0; i <= n; i++ {
		score[i] = make([]float64, m+1)
		prev[i] = make([]move, m+1)
	}

	gapRun := func(i int) float64 { return gapCost * trace.KindWeight(runKinds[i-1]) }
	gapSt := func(j int) float64 { return gapCost * trace.KindWeight(stKinds[j-1]) }

	for i := 1; i <= n; i++ {
		score[i][0] = score[i-1][0] + gapRun(i)
		prev[i][0] = moveDel
	}
	for j := 1; j <= m; j++ {
		score[0][j] = score[0][j-1] + gapSt(j)
		prev[0][j] = moveIns
	}

	for i := 1; i <= n; i++ {
		ri := run[i-1]
		wi := trace.KindWeight(runKinds[i-1])
		for j := 1; j <= m; j++ {
			sj := st[j-1]
			w := 0.5 * (wi + trace.KindWeight(stKinds[j-1]))

			var s float64
			switch {
			case ri.SID == sj.SID && ri.Val == sj.Val:
				s = matchReward * w
			case ri.SID == sj.SID:
				s = flipCost * w
			default:
				s = substCost * w
			}

			cMatch := score[i-1][j-1] + s
			cDel := score[i-1][j] + gapRun(i)
			cIns := score[i][j-1] + gapSt(j)

			switch {
			case cMatch >= cDel && cMatch >= cIns:
				score[i][j] = cMatch
				prev[i][j] = moveMatch
			case cDel >= cIns:
				score[i][j] = cDel
				prev[i][j] = moveDel
			default:
				score[i][j] = cIns
				prev[i][j] = moveIns
			}
		}
	}

	// Backtrack from (n,m) collecting steps in reverse.
	var diffs []DiffStep
	i, j := n, m
	for i > 0 || j > 0 {
		switch prev[i][j] {
		case moveMatch:
			ri, sj := run[i-1], st[j-1]
			op := OpSubst
			if ri.SID == sj.SID && ri.Val == sj.Val {
				op = OpKeep
			} else if ri.SID == sj.SID {
				op = OpFlip
			}
			diffs = append(diffs, DiffStep{Op: op, RunIdx: idx(i - 1), StIdx: idx(j - 1)})
			i, j = i-1, j-1
		case moveDel:
			diffs = append(diffs, DiffStep{Op: OpDel, RunIdx: idx(i - 1)})
			i--
		case moveIns:
			diffs = append(diffs, DiffStep{Op: OpIns, StIdx: idx(j - 1)})
			j--
		default:
			// only reachable at (0,0)
			i, j = 0, 0
		}
	}
	reverse(diffs)
	return score[n][m], diffs
}

func idx(v int) *int { return &v }

func reverse(steps []DiffStep) {
	for l, r := 0, len(steps)-1; l < r; l, r = l+1, r-1 {
		steps[l], steps[r] = steps[r], steps[l]
	}
}
