package ingest

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleLog = `
{"type":"test_start","test_id":1,"suite":"MathSuite","name":"Add","full":"MathSuite.Add","file":"math_test.cc","line":10}
{"type":"invocation_start","test_id":1,"invocation_id":100,"in_oracle":0,"call_file":"math_test.cc","call_line":12,"call_expr":"setup()"}
{"type":"cond","test_id":1,"invocation_id":100,"func":"fh1","cond_hash":"c1","cond_norm":"x > 0","cond_kind":"IF","val":true,"norm_flip":false}
{"type":"assertion","test_id":1,"assert_id":1,"macro":"EXPECT_EQ","file":"math_test.cc","line":14,"raw":"EXPECT_EQ(a, b)"}
{"type":"invocation_start","test_id":1,"invocation_id":101,"in_oracle":1,"call_file":"math_test.cc","call_line":14,"call_expr":"add(a, b)"}
{"type":"cond","test_id":1,"invocation_id":101,"func":"fh1","cond_hash":"c2","cond_norm":"y > 0","cond_kind":"IF","val":false,"norm_flip":false}
{"type":"invocation_start","test_id":1,"invocation_id":102,"in_oracle":0,"call_file":"math_test.cc","call_line":15,"call_expr":"reset()"}
{"type":"assertion","test_id":1,"assert_id":2,"macro":"EXPECT_TRUE","file":"math_test.cc","line":16,"raw":"EXPECT_TRUE(ok)"}
{"type":"test_end","test_id":1}
`

func TestScanFramesWindows(t *testing.T) {
	var windows []Window
	err := Scan(strings.NewReader(sampleLog), Filter{}, func(w Window) error {
		windows = append(windows, w)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}

	first := windows[0]
	if first.Assertion.AssertID != 1 || first.Assertion.Macro != "EXPECT_EQ" {
		t.Errorf("first assertion = %+v", first.Assertion)
	}
	if len(first.Prefix) != 1 || first.Prefix[0].InvocationID != 100 {
		t.Errorf("first prefix = %+v", first.Prefix)
	}
	if len(first.OracleCalls) != 1 || first.OracleCalls[0].InvocationID != 101 {
		t.Errorf("first oracle = %+v", first.OracleCalls)
	}
	if len(first.Conds[100]) != 1 || first.Conds[100][0].CondHash != "c1" {
		t.Errorf("first conds[100] = %+v", first.Conds[100])
	}
	if len(first.Conds[101]) != 1 || first.Conds[101][0].CondHash != "c2" {
		t.Errorf("first conds[101] = %+v", first.Conds[101])
	}

	second := windows[1]
	if second.Assertion.AssertID != 2 {
		t.Errorf("second assertion = %+v", second.Assertion)
	}
	// invocation 102 arrived after assertion 1 with in_oracle=0: it is the
	// second window's prefix
	if len(second.Prefix) != 1 || second.Prefix[0].InvocationID != 102 {
		t.Errorf("second prefix = %+v", second.Prefix)
	}
	if len(second.OracleCalls) != 0 {
		t.Errorf("second oracle = %+v", second.OracleCalls)
	}
	if first.Test.Full != "MathSuite.Add" || second.Test.Full != "MathSuite.Add" {
		t.Errorf("test info not carried: %+v / %+v", first.Test, second.Test)
	}
}

func TestScanFlushesAtEOF(t *testing.T) {
	truncated := strings.TrimSpace(sampleLog)
	truncated = strings.TrimSuffix(truncated, `{"type":"test_end","test_id":1}`)

	var windows []Window
	if err := Scan(strings.NewReader(truncated), Filter{}, func(w Window) error {
		windows = append(windows, w)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if len(windows) != 2 {
		t.Errorf("windows = %d, want 2 (second flushed at EOF)", len(windows))
	}
}

func TestScanFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "No Filter", filter: Filter{}, want: 2},
		{name: "Suite Match", filter: Filter{Suite: "Math"}, want: 2},
		{name: "Suite Mismatch", filter: Filter{Suite: "Net"}, want: 0},
		{name: "Test Match Short", filter: Filter{Test: "Add"}, want: 2},
		{name: "Test Match Full", filter: Filter{Test: "MathSuite.Add"}, want: 2},
		{name: "Test Mismatch", filter: Filter{Test: "Sub"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := 0
			if err := Scan(strings.NewReader(sampleLog), tt.filter, func(Window) error {
				count++
				return nil
			}); err != nil {
				t.Fatal(err)
			}
			if count != tt.want {
				t.Errorf("windows = %d, want %d", count, tt.want)
			}
		})
	}
}

func TestScanSkipsMalformedLines(t *testing.T) {
	log := "not json at all\n" + sampleLog + "\n{\"type\": \"cond\"}\n"
	count := 0
	if err := Scan(strings.NewReader(log), Filter{}, func(Window) error {
		count++
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("windows = %d, want 2", count)
	}
}

func TestOpenLogGzip(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "run.ndjson")
	if err := os.WriteFile(plain, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(sampleLog)); err != nil {
		t.Fatal(err)
	}
	zw.Close()
	zipped := filepath.Join(dir, "run.ndjson.gz")
	if err := os.WriteFile(zipped, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{plain, zipped} {
		rc, err := OpenLog(path)
		if err != nil {
			t.Fatalf("OpenLog(%s): %v", path, err)
		}
		count := 0
		if err := Scan(rc, Filter{}, func(Window) error {
			count++
			return nil
		}); err != nil {
			t.Fatal(err)
		}
		rc.Close()
		if count != 2 {
			t.Errorf("%s: windows = %d, want 2", path, count)
		}
	}
}
