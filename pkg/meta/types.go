// Package meta loads the static-analysis metadata snapshot (functions,
// conditions, chains) that a matching session is built from. The on-disk
// files tolerate several historical key spellings and container shapes;
// everything is normalized into the canonical types here at this boundary
// so nothing downstream deals with optionality.
package meta

import "encoding/json"

// Condition is one statically known condition site.
type Condition struct {
	ID   int
	Hash string
	Norm string
	Kind string
	File string
	Line int
}

// Function is one statically known function.
type Function struct {
	Hash      string `json:"hash"`
	Name      string `json:"name,omitempty"`
	Signature string `json:"signature,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// CondVal is one (condition hash, expected value) step of a chain as
// originally authored. It serializes as a two-element [hash, value] array
// for compatibility with the report schema.
type CondVal struct {
	Hash string
	Val  bool
}

func (cv CondVal) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{cv.Hash, cv.Val})
}

func (cv *CondVal) UnmarshalJSON(data []byte) error {
	var raw [2]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s, _ := raw[0].(string)
	b, _ := raw[1].(bool)
	cv.Hash = s
	cv.Val = b
	return nil
}

// Chain is one static chain definition: the authored (hash, value)
// sequence plus the provenance of the file it came from.
type Chain struct {
	Seq    []CondVal
	Source string
}

// Source records the outcome of loading one metadata file. Loading is
// best-effort per file; an absent or malformed file yields an empty
// contribution with the reason preserved here instead of failing the load.
type Source struct {
	Name            string
	Path            string
	Present         bool
	Reason          string
	AnalysisVersion string
}

// Meta is one consolidated metadata snapshot. Built once per session and
// read-only afterwards.
type Meta struct {
	FunctionsByHash  map[string]Function
	ConditionsByHash map[string]Condition
	ConditionsByID   map[int]Condition
	ChainsByFunc     map[string][]Chain
	Sources          []Source
}

// ChainCount is the total number of chain definitions across functions.
func (m *Meta) ChainCount() int {
	n := 0
	for _, chains := range m.ChainsByFunc {
		n += len(chains)
	}
	return n
}
