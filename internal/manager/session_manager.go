// Package manager caches matching sessions, one per metadata snapshot
// directory. A session is built once and read-only afterwards, so it can
// be shared across concurrent match calls without synchronization.
package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/condlab/chainmatch/pkg/match"
	"github.com/condlab/chainmatch/pkg/meta"
	"github.com/condlab/chainmatch/pkg/static"
)

// MaxOpenSessions bounds how many built indices stay resident.
const MaxOpenSessions = 10

// SessionInfo is the session listing exposed by the API.
type SessionInfo struct {
	ID        string `json:"id"`
	Functions int    `json:"functions"`
	Chains    int    `json:"chains"`
}

// Session is one immutable matching session: a metadata snapshot, its
// static index and a matcher over it.
type Session struct {
	ID      string
	Meta    *meta.Meta
	Index   *static.Index
	Matcher *match.Matcher
}

// NewSession loads the metadata directory and builds the session.
func NewSession(id, dir string) *Session {
	m := meta.Load(dir)
	idx := static.Build(m)
	return &Session{
		ID:      id,
		Meta:    m,
		Index:   idx,
		Matcher: match.New(idx),
	}
}

// SessionManager resolves session ids (subdirectories of baseDir holding
// meta files) to built sessions, keeping the most recently used resident.
type SessionManager struct {
	baseDir  string
	sessions *lru.Cache[string, *Session]
	mu       sync.Mutex
}

// NewSessionManager creates a manager over baseDir.
func NewSessionManager(baseDir string) *SessionManager {
	cache, _ := lru.New[string, *Session](MaxOpenSessions)
	return &SessionManager{
		baseDir:  baseDir,
		sessions: cache,
	}
}

// Get returns the session for id, building it on first use. Building is
// serialized so concurrent requests for the same snapshot load it once.
func (sm *SessionManager) Get(id string) (*Session, error) {
	if s, ok := sm.sessions.Get(id); ok {
		return s, nil
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if s, ok := sm.sessions.Get(id); ok {
		return s, nil
	}

	dir, err := sm.sessionDir(id)
	if err != nil {
		return nil, err
	}
	s := NewSession(id, dir)
	sm.sessions.Add(id, s)
	return s, nil
}

// List returns the sessions available under baseDir.
func (sm *SessionManager) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(sm.baseDir)
	if err != nil {
		return nil, err
	}
	var infos []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := SessionInfo{ID: entry.Name()}
		if s, ok := sm.sessions.Get(entry.Name()); ok {
			info.Functions = len(s.Meta.FunctionsByHash)
			info.Chains = s.Index.ChainTotal()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (sm *SessionManager) sessionDir(id string) (string, error) {
	if id == "" || id != filepath.Base(id) {
		return "", fmt.Errorf("invalid session id: %q", id)
	}
	dir := filepath.Join(sm.baseDir, id)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return "", fmt.Errorf("session not found: %s", id)
	}
	return dir, nil
}
