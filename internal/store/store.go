// Package store persists session transcripts so a conversation can be
// inspected after the process exits. Writes are atomic and the sessions
// directory is guarded by a file lock so two kabu processes cannot
// interleave writes.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"

	kabuErrors "github.com/harunnryd/kabu/internal/errors"
	"github.com/harunnryd/kabu/internal/model/contract"
)

const (
	lockRetry    = 100 * time.Millisecond
	lockMaxRetry = 10
)

// Session is one persisted conversation transcript.
type Session struct {
	ID        string             `json:"id"`
	StartedAt time.Time          `json:"started_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Messages  []contract.Message `json:"messages"`
}

// Store owns one sessions directory.
type Store struct {
	dir      string
	fileLock *flock.Flock
}

// NewSessionID returns a sortable unique session ID.
func NewSessionID() string {
	return ulid.Make().String()
}

// Open prepares the sessions directory and takes its lock. Callers must
// Close to release the lock.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, kabuErrors.InvalidInput("sessions directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(dir, "sessions.lock"))
	if err := acquireWithRetry(fileLock); err != nil {
		return nil, err
	}

	slog.Debug("Session store opened", "dir", dir)
	return &Store{dir: dir, fileLock: fileLock}, nil
}

func acquireWithRetry(fileLock *flock.Flock) error {
	for i := 0; i < lockMaxRetry; i++ {
		locked, err := fileLock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire sessions lock: %w", err)
		}
		if locked {
			return nil
		}
		if i < lockMaxRetry-1 {
			time.Sleep(lockRetry)
		}
	}
	return fmt.Errorf("sessions directory is locked by another kabu instance")
}

// Save writes the session transcript atomically.
func (s *Store) Save(session *Session) error {
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return kabuErrors.InvalidInput("session has no ID")
	}
	session.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}
	if err := atomic.WriteFile(s.path(session.ID), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write session %s: %w", session.ID, err)
	}

	slog.Debug("Session saved", "session_id", session.ID, "messages", len(session.Messages))
	return nil
}

// Load reads a session transcript by ID.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kabuErrors.NotFound(fmt.Sprintf("session %s", id))
		}
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &session, nil
}

// List returns the IDs of all persisted sessions, oldest first. ULIDs sort
// lexicographically by creation time.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the directory lock.
func (s *Store) Close() error {
	if s.fileLock == nil {
		return nil
	}
	if err := s.fileLock.Unlock(); err != nil {
		return fmt.Errorf("release sessions lock: %w", err)
	}
	s.fileLock = nil
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
