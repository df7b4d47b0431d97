package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/condlab/chainmatch/pkg/common/errors"
	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/static"
	"github.com/condlab/chainmatch/pkg/trace"
)

// handleSessions returns the metadata snapshots available for matching.
func (s *Server) handleSessions(c *gin.Context) {
	infos, err := s.manager.List()
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": infos})
}

// handleFunctions lists a session's known functions, or ranks them
// against ?q= when given.
func (s *Server) handleFunctions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	query := c.Query("q")
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid limit", err))
			return
		}
		limit = n
	}

	if query == "" {
		funcs := make([]functionEntry, 0, len(sess.Meta.FunctionsByHash))
		for _, fn := range sess.Meta.FunctionsByHash {
			funcs = append(funcs, functionEntry{
				Hash:      fn.Hash,
				Name:      fn.Name,
				Signature: fn.Signature,
				Chains:    len(sess.Index.Chains(fn.Hash)),
			})
		}
		c.JSON(http.StatusOK, gin.H{"functions": funcs})
		return
	}

	matches := static.SearchFunctions(query, sess.Meta.FunctionsByHash, limit)
	results := make([]functionEntry, 0, len(matches))
	for _, m := range matches {
		results = append(results, functionEntry{
			Hash:      m.Function.Hash,
			Name:      m.Function.Name,
			Signature: m.Function.Signature,
			Chains:    len(sess.Index.Chains(m.Function.Hash)),
			Score:     m.Score,
		})
	}
	c.JSON(http.StatusOK, gin.H{"functions": results})
}

type functionEntry struct {
	Hash      string  `json:"hash"`
	Name      string  `json:"name"`
	Signature string  `json:"signature,omitempty"`
	Chains    int     `json:"chains"`
	Score     float64 `json:"score,omitempty"`
}

type matchRequest struct {
	FuncHash  string        `json:"func_hash"`
	FuncName  string        `json:"func_name"`
	Events    []trace.Event `json:"events"`
	TopK      int           `json:"topk"`
	Threshold float64       `json:"threshold"`
	Prefilter int           `json:"prefilter"`
}

// handleMatch ranks a session's static chains against a runtime trace.
func (s *Server) handleMatch(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}
	if len(req.Events) == 0 {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing trace events", nil))
		return
	}

	funcHash := req.FuncHash
	if funcHash == "" && req.FuncName != "" {
		matches := static.SearchFunctions(req.FuncName, sess.Meta.FunctionsByHash, 1)
		if len(matches) == 0 {
			handleError(c, errors.NewAppError(http.StatusNotFound, "Unknown function", nil))
			return
		}
		funcHash = matches[0].Function.Hash
	}
	if funcHash == "" {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Missing func_hash or func_name", nil))
		return
	}

	opts := match.Options{
		TopK:          req.TopK,
		Threshold:     req.Threshold,
		PrefilterSize: req.Prefilter,
	}
	candidates := sess.Matcher.Match(funcHash, trace.Compress(req.Events), opts)
	c.JSON(http.StatusOK, gin.H{
		"func_hash":  funcHash,
		"candidates": candidates,
	})
}

// handleCompress collapses loop iterations in a raw trace. Debug aid.
func (s *Server) handleCompress(c *gin.Context) {
	var req struct {
		Events []trace.Event `json:"events"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleError(c, errors.NewAppError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	compressed := trace.Compress(req.Events)
	c.JSON(http.StatusOK, gin.H{
		"events":   compressed,
		"raw_len":  len(req.Events),
		"kept_len": len(compressed),
	})
}
