package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/mrreviews/mrr/internal/domain/user"
	"github.com/mrreviews/mrr/internal/platform/logging"
)

// State is the persisted login: the serialized user plus the relay-issued
// token. A zero State means logged out.
type State struct {
	User  user.User `json:"user"`
	Token string    `json:"token,omitempty"`
}

func (s State) LoggedIn() bool {
	return s.User.TelegramID > 0
}

// Store persists the session as a JSON file, the desktop analogue of the web
// client's localStorage keys. Writes are atomic (temp file + rename) so a
// concurrent reader never observes a torn session.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger
}

func NewStore(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the persisted session. A missing file is a logged-out state,
// not an error; a corrupt file is discarded the same way login widgets
// discard unparseable storage.
func (s *Store) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, crerr.Wrap(err, "read session file")
	}

	var state State
	if err := sonic.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("discarding corrupt session file", "path", s.path, "error", err)
		return State{}, nil
	}
	return state, nil
}

func (s *Store) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := sonic.MarshalIndent(state, "", "  ")
	if err != nil {
		return crerr.Wrap(err, "encode session")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return crerr.Wrap(err, "create session dir")
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return crerr.Wrap(err, "create temp session file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return crerr.Wrap(err, "write session")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return crerr.Wrap(err, "close session file")
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return crerr.Wrap(err, "chmod session file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return crerr.Wrap(err, "replace session file")
	}
	return nil
}

// Clear logs out by removing the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return crerr.Wrap(err, "remove session file")
	}
	return nil
}

// Watch polls the session file and emits the new state whenever another
// process changes it, mirroring the browser's cross-tab storage event. The
// channel closes when ctx is done.
func (s *Store) Watch(ctx context.Context, interval time.Duration) <-chan State {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	out := make(chan State, 1)
	go func() {
		defer close(out)

		lastMod := s.modTime()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mod := s.modTime()
				if mod.Equal(lastMod) {
					continue
				}
				lastMod = mod

				state, err := s.Load()
				if err != nil {
					s.logger.Warn("reload session after change failed", "error", err)
					continue
				}
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *Store) modTime() time.Time {
	info, err := os.Stat(s.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
