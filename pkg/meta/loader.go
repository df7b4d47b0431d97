package meta

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	conditionsFile = "conditions.meta.json"
	chainsFile     = "chains.meta.json"
	functionsFile  = "functions.meta.json"
)

// Load reads a metadata directory. Every file is loaded independently; a
// missing or malformed file contributes nothing and is recorded in
// Sources rather than failing the load. Conditions are loaded first so
// chain sequences can be resolved from condition ids to hashes.
func Load(dir string) *Meta {
	m := &Meta{
		FunctionsByHash:  map[string]Function{},
		ConditionsByHash: map[string]Condition{},
		ConditionsByID:   map[int]Condition{},
		ChainsByFunc:     map[string][]Chain{},
	}

	condSrc := m.loadConditions(filepath.Join(dir, conditionsFile))
	chainSrc := m.loadChains(filepath.Join(dir, chainsFile))
	funcSrc := m.loadFunctions(filepath.Join(dir, functionsFile))
	m.Sources = []Source{condSrc, chainSrc, funcSrc}

	// All present files must come from the same analysis run.
	versions := map[string]string{}
	for _, src := range m.Sources {
		if src.Present && src.AnalysisVersion != "" {
			versions[src.AnalysisVersion] = src.Name
		}
	}
	if len(versions) > 1 {
		slog.Warn("meta analysis_version mismatch across files",
			"conditions", condSrc.AnalysisVersion,
			"chains", chainSrc.AnalysisVersion,
			"functions", funcSrc.AnalysisVersion)
	}

	slog.Info("loaded meta",
		"dir", dir,
		"functions", len(m.FunctionsByHash),
		"conditions", len(m.ConditionsByHash),
		"chains", m.ChainCount())
	return m
}

func (m *Meta) loadConditions(path string) Source {
	src := Source{Name: "conditions", Path: path}
	root, reason := readJSON(path)
	if root == nil {
		src.Reason = reason
		return src
	}
	obj, ok := root.(map[string]any)
	if !ok {
		src.Reason = "unexpected top-level shape"
		return src
	}
	src.Present = true
	src.AnalysisVersion = asString(obj["analysis_version"])

	items, _ := obj["conditions"].([]any)
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		c := Condition{
			Hash: firstString(entry, "hash", "cond_hash"),
			Norm: firstString(entry, "cond_norm", "norm", "cond"),
			Kind: firstString(entry, "kind", "cond_kind"),
			File: asString(entry["file"]),
			Line: asInt(entry["line"]),
		}
		if id, ok := asIntOK(entry["id"]); ok {
			c.ID = id
			m.ConditionsByID[id] = c
		}
		if c.Hash != "" {
			m.ConditionsByHash[c.Hash] = c
		}
	}
	return src
}

func (m *Meta) loadChains(path string) Source {
	src := Source{Name: "chains", Path: path}
	root, reason := readJSON(path)
	if root == nil {
		src.Reason = reason
		return src
	}

	// Tolerated shapes: {analysis_version, chains: [...]} or a bare list.
	var items []any
	switch v := root.(type) {
	case map[string]any:
		src.AnalysisVersion = asString(v["analysis_version"])
		items, _ = v["chains"].([]any)
	case []any:
		items = v
	default:
		src.Reason = "unexpected top-level shape"
		return src
	}
	src.Present = true

	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		funcHash := firstString(entry, "func_hash", "func")
		if funcHash == "" {
			continue
		}
		steps, _ := entry["sequence"].([]any)
		var seq []CondVal
		for _, st := range steps {
			stepObj, ok := st.(map[string]any)
			if !ok {
				continue
			}
			id, ok := asIntOK(stepObj["cond_id"])
			if !ok {
				continue
			}
			cond, ok := m.ConditionsByID[id]
			if !ok || cond.Hash == "" {
				continue
			}
			val, _ := stepObj["value"].(bool)
			seq = append(seq, CondVal{Hash: cond.Hash, Val: val})
		}
		m.ChainsByFunc[funcHash] = append(m.ChainsByFunc[funcHash], Chain{Seq: seq, Source: path})
	}
	return src
}

func (m *Meta) loadFunctions(path string) Source {
	src := Source{Name: "functions", Path: path}
	root, reason := readJSON(path)
	if root == nil {
		src.Reason = reason
		return src
	}
	obj, ok := root.(map[string]any)
	if !ok {
		src.Reason = "unexpected top-level shape"
		return src
	}
	src.Present = true
	src.AnalysisVersion = asString(obj["analysis_version"])

	items, _ := obj["functions"].([]any)
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		f := Function{
			Hash:      asString(entry["hash"]),
			Name:      asString(entry["name"]),
			Signature: asString(entry["signature"]),
			File:      asString(entry["file"]),
			Line:      asInt(entry["line"]),
		}
		if f.Hash != "" {
			m.FunctionsByHash[f.Hash] = f
		}
	}
	return src
}

func readJSON(path string) (any, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "unreadable: " + err.Error()
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, "invalid JSON: " + err.Error()
	}
	return root, ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func asInt(v any) int {
	i, _ := asIntOK(v)
	return i
}

func asIntOK(v any) (int, bool) {
	// encoding/json decodes all numbers as float64
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
