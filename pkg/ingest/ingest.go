// Package ingest reads the NDJSON runtime log produced by an instrumented
// test run and frames it into per-assertion windows: the invocations
// leading up to an assertion (prefix), the invocations evaluated inside
// its oracle, and every condition event recorded for those invocations.
package ingest

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/condlab/chainmatch/pkg/trace"
)

// TestInfo identifies one test case from its test_start event.
type TestInfo struct {
	Suite string `json:"suite"`
	Name  string `json:"name"`
	Full  string `json:"full"`
	File  string `json:"file"`
	Line  int    `json:"line"`
}

// Invocation is one instrumented function call observed during a test.
type Invocation struct {
	InvocationID int64  `json:"invocation_id"`
	InOracle     bool   `json:"-"`
	CallFile     string `json:"call_file,omitempty"`
	CallLine     int    `json:"call_line,omitempty"`
	CallExpr     string `json:"call_expr,omitempty"`
}

// Assertion is one assertion event.
type Assertion struct {
	AssertID int64  `json:"assert_id"`
	Macro    string `json:"macro,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Raw      string `json:"raw,omitempty"`
}

// Window is everything framed for one assertion: its test, the prefix
// invocations since the previous cut, the oracle invocations, and the raw
// condition events per invocation id.
type Window struct {
	Test        TestInfo
	Assertion   Assertion
	Prefix      []Invocation
	OracleCalls []Invocation
	Conds       map[int64][]trace.Event
}

// Filter restricts which tests produce windows. Both fields are substring
// matches; Test matches against either the short or the full test name.
type Filter struct {
	Suite string
	Test  string
}

func (f Filter) keep(info TestInfo) bool {
	if f.Suite != "" && !strings.Contains(info.Suite, f.Suite) {
		return false
	}
	if f.Test != "" && !strings.Contains(info.Name, f.Test) && !strings.Contains(info.Full, f.Test) {
		return false
	}
	return true
}

// rawEvent is the union of every log line shape; Type discriminates.
type rawEvent struct {
	Type   string `json:"type"`
	TestID *int64 `json:"test_id"`

	// test_start
	Suite string `json:"suite"`
	Name  string `json:"name"`
	Full  string `json:"full"`
	File  string `json:"file"`
	Line  int    `json:"line"`

	// invocation_start / cond
	InvocationID *int64 `json:"invocation_id"`
	InOracle     int    `json:"in_oracle"`
	CallFile     string `json:"call_file"`
	CallLine     int    `json:"call_line"`
	CallExpr     string `json:"call_expr"`

	// cond
	Func     string `json:"func"`
	CondHash string `json:"cond_hash"`
	CondNorm string `json:"cond_norm"`
	CondKind string `json:"cond_kind"`
	Val      bool   `json:"val"`
	NormFlip bool   `json:"norm_flip"`

	// assertion
	AssertID int64  `json:"assert_id"`
	Macro    string `json:"macro"`
	Raw      string `json:"raw"`
}

// testState accumulates one test's framing, mirroring the reporter's
// per-test window bookkeeping.
type testState struct {
	info       *TestInfo
	bufPrefix  []Invocation // invocations since the last cut
	currPrefix []Invocation // prefix snapshot of the open assertion
	openAssert *Assertion
	oracle     []Invocation
	condsByInv map[int64][]trace.Event
}

func newTestState() *testState {
	return &testState{condsByInv: map[int64][]trace.Event{}}
}

func (st *testState) window() Window {
	iids := map[int64]struct{}{}
	for _, c := range st.currPrefix {
		iids[c.InvocationID] = struct{}{}
	}
	for _, c := range st.oracle {
		iids[c.InvocationID] = struct{}{}
	}
	conds := make(map[int64][]trace.Event, len(iids))
	for iid := range iids {
		conds[iid] = st.condsByInv[iid]
	}
	return Window{
		Test:        *st.info,
		Assertion:   *st.openAssert,
		Prefix:      st.currPrefix,
		OracleCalls: st.oracle,
		Conds:       conds,
	}
}

// OpenLog opens a runtime log, transparently gunzipping by .gz suffix.
func OpenLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	err := g.gz.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Scan reads NDJSON events from r and calls emit for every completed
// assertion window that passes the filter. An assertion window closes at
// the next assertion, at test_end, or at end of input. Blank and
// unparseable lines are skipped. Scanning stops on the first emit error.
func Scan(r io.Reader, filter Filter, emit func(Window) error) error {
	states := map[int64]*testState{}
	var order []int64
	skipped := 0

	flush := func(st *testState) error {
		if st.openAssert == nil || st.info == nil || !filter.keep(*st.info) {
			return nil
		}
		return emit(st.window())
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev rawEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			skipped++
			continue
		}
		if ev.TestID == nil {
			continue
		}
		st, ok := states[*ev.TestID]
		if !ok {
			st = newTestState()
			states[*ev.TestID] = st
			order = append(order, *ev.TestID)
		}

		switch ev.Type {
		case "test_start":
			st.info = &TestInfo{Suite: ev.Suite, Name: ev.Name, Full: ev.Full, File: ev.File, Line: ev.Line}
			st.bufPrefix = nil
			st.currPrefix = nil
			st.openAssert = nil
			st.oracle = nil
			st.condsByInv = map[int64][]trace.Event{}

		case "invocation_start":
			if ev.InvocationID == nil {
				continue
			}
			inv := Invocation{
				InvocationID: *ev.InvocationID,
				InOracle:     ev.InOracle != 0,
				CallFile:     ev.CallFile,
				CallLine:     ev.CallLine,
				CallExpr:     ev.CallExpr,
			}
			if st.openAssert != nil && inv.InOracle {
				st.oracle = append(st.oracle, inv)
			} else {
				// before the first assertion, or between assertions:
				// part of the next window's prefix
				st.bufPrefix = append(st.bufPrefix, inv)
			}

		case "cond":
			if ev.InvocationID == nil {
				continue
			}
			st.condsByInv[*ev.InvocationID] = append(st.condsByInv[*ev.InvocationID], trace.Event{
				Func:     ev.Func,
				File:     ev.File,
				Line:     ev.Line,
				CondHash: ev.CondHash,
				CondNorm: ev.CondNorm,
				CondKind: ev.CondKind,
				Val:      ev.Val,
				NormFlip: ev.NormFlip,
			})

		case "assertion":
			if err := flush(st); err != nil {
				return err
			}
			st.openAssert = &Assertion{AssertID: ev.AssertID, Macro: ev.Macro, File: ev.File, Line: ev.Line, Raw: ev.Raw}
			st.currPrefix = st.bufPrefix
			st.bufPrefix = nil
			st.oracle = nil

		case "test_end":
			if err := flush(st); err != nil {
				return err
			}
			st.openAssert = nil
			st.currPrefix = nil
			st.bufPrefix = nil
			st.oracle = nil
			st.condsByInv = map[int64][]trace.Event{}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// Logs can end mid-test; flush remaining open assertions in first-seen
	// test order.
	for _, id := range order {
		if err := flush(states[id]); err != nil {
			return err
		}
	}

	if skipped > 0 {
		slog.Debug("skipped unparseable log lines", "count", skipped)
	}
	return nil
}
