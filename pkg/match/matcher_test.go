package match

import (
	"testing"

	"github.com/condlab/chainmatch/pkg/align"
	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/static"
	"github.com/condlab/chainmatch/pkg/trace"
)

func chainFrom(chainID int, steps ...trace.Event) *static.Chain {
	hashSeq := make([]meta.CondVal, len(steps))
	sidSeq := make([]trace.Pair, len(steps))
	kinds := make([]string, len(steps))
	for i, ev := range steps {
		hashSeq[i] = meta.CondVal{Hash: ev.CondHash, Val: ev.Val}
		sidSeq[i] = trace.Pair{SID: ev.SID(), Val: ev.Val}
		kinds[i] = ev.CondKind
	}
	return static.NewChain(chainID, "chains.meta.json", hashSeq, sidSeq, kinds)
}

func ev(hash, kind, norm string, val bool) trace.Event {
	return trace.Event{CondHash: hash, CondKind: kind, CondNorm: norm, Val: val}
}

func testIndex() *static.Index {
	return &static.Index{ByFunc: map[string][]*static.Chain{
		"f1": {
			chainFrom(0,
				ev("c1", "LOOP", "i < n", true),
				ev("c2", "IF", "x > 0", true),
			),
			chainFrom(1,
				ev("c1", "LOOP", "i < n", true),
				ev("c2", "IF", "x > 0", false),
			),
			chainFrom(2,
				ev("c1", "LOOP", "i < n", false),
			),
		},
	}}
}

func TestMatchExactSequenceScoresOne(t *testing.T) {
	m := New(testIndex())
	events := []trace.Event{
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", true),
	}
	got := m.Match("f1", events, DefaultOptions())
	if len(got) == 0 {
		t.Fatal("no candidates")
	}
	best := got[0]
	if best.ChainID != 0 {
		t.Errorf("best chain = %d, want 0", best.ChainID)
	}
	if best.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", best.Score)
	}
	if best.LCP != 2 || best.LCS != 2 {
		t.Errorf("lcp/lcs = %d/%d, want 2/2", best.LCP, best.LCS)
	}
	for _, d := range best.Diffs {
		if d.Op != align.OpKeep {
			t.Errorf("diff op = %s, want keep", d.Op)
		}
	}
}

func TestMatchNormFlipApplied(t *testing.T) {
	m := New(testIndex())
	// Raw false with a normalization flip is an effective true.
	events := []trace.Event{
		{CondHash: "c1", CondKind: "LOOP", CondNorm: "i < n", Val: false, NormFlip: true},
		{CondHash: "c2", CondKind: "IF", CondNorm: "x > 0", Val: true},
	}
	got := m.Match("f1", events, DefaultOptions())
	if len(got) == 0 || got[0].ChainID != 0 || got[0].Score != 1.0 {
		t.Fatalf("expected exact score on chain 0, got %+v", got)
	}
}

func TestMatchNoFunctionIdentity(t *testing.T) {
	m := New(testIndex())
	events := []trace.Event{ev("c1", "LOOP", "i < n", true)}
	if got := m.Match("", events, DefaultOptions()); got != nil {
		t.Errorf("empty func hash returned %d candidates", len(got))
	}
	if got := m.Match("unknown", events, DefaultOptions()); got != nil {
		t.Errorf("unknown func hash returned %d candidates", len(got))
	}
}

func TestMatchTopKCap(t *testing.T) {
	m := New(testIndex())
	events := []trace.Event{
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", true),
	}
	opts := DefaultOptions()
	opts.TopK = 1
	opts.Threshold = 0.01
	got := m.Match("f1", events, opts)
	if len(got) != 1 {
		t.Errorf("topk=1 returned %d candidates", len(got))
	}
}

func TestMatchThresholdMonotonic(t *testing.T) {
	m := New(testIndex())
	events := []trace.Event{
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", true),
	}
	opts := DefaultOptions()
	opts.TopK = 10
	prev := -1
	for _, thr := range []float64{0.1, 0.4, 0.7, 0.95} {
		opts.Threshold = thr
		n := len(m.Match("f1", events, opts))
		if prev >= 0 && n > prev {
			t.Errorf("raising threshold to %v increased matches: %d > %d", thr, n, prev)
		}
		prev = n
	}
}

func TestMatchScoreBounds(t *testing.T) {
	m := New(testIndex())
	traces := [][]trace.Event{
		{ev("c1", "LOOP", "i < n", true), ev("c2", "IF", "x > 0", true)},
		{ev("c9", "IF", "totally different", true)},
		{ev("c1", "LOOP", "i < n", false)},
		{},
	}
	opts := DefaultOptions()
	opts.Threshold = 0.0001
	opts.TopK = 10
	for _, tr := range traces {
		for _, cand := range m.Match("f1", tr, opts) {
			if cand.Score < 0 || cand.Score > 1 {
				t.Errorf("score out of bounds: %v", cand.Score)
			}
		}
	}
}

func TestMatchRanking(t *testing.T) {
	m := New(testIndex())
	// Effective path matches chain 1 exactly; chain 0 differs by one flip.
	events := []trace.Event{
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", false),
	}
	opts := DefaultOptions()
	opts.Threshold = 0.1
	got := m.Match("f1", events, opts)
	if len(got) < 2 {
		t.Fatalf("expected at least 2 candidates, got %d", len(got))
	}
	if got[0].ChainID != 1 {
		t.Errorf("best chain = %d, want 1", got[0].ChainID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("ranking not descending: %v <= %v", got[0].Score, got[1].Score)
	}
}

func TestMatchPrefilterBoundsCandidates(t *testing.T) {
	// Many disjoint chains plus one perfect one; a tiny prefilter must
	// still let the perfect chain through (highest Jaccard).
	chains := make([]*static.Chain, 0, 30)
	for i := 0; i < 29; i++ {
		chains = append(chains, chainFrom(i, ev("z", "IF", "noise", i%2 == 0)))
	}
	chains = append(chains, chainFrom(29,
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", true),
	))
	idx := &static.Index{ByFunc: map[string][]*static.Chain{"f": chains}}
	m := New(idx)

	events := []trace.Event{
		ev("c1", "LOOP", "i < n", true),
		ev("c2", "IF", "x > 0", true),
	}
	opts := DefaultOptions()
	opts.PrefilterSize = 3
	got := m.Match("f", events, opts)
	if len(got) == 0 || got[0].ChainID != 29 {
		t.Fatalf("prefilter lost the best chain: %+v", got)
	}
	if got[0].Score != 1.0 {
		t.Errorf("score = %v, want 1.0", got[0].Score)
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.TopK != DefaultTopK || o.Threshold != DefaultThreshold || o.PrefilterSize != DefaultPrefilterSize {
		t.Errorf("withDefaults() = %+v", o)
	}
	o = Options{TopK: 7, Threshold: 0.5, PrefilterSize: 5}.withDefaults()
	if o.TopK != 7 || o.Threshold != 0.5 || o.PrefilterSize != 5 {
		t.Errorf("withDefaults() clobbered explicit values: %+v", o)
	}
}
