package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	stateFileName = "current_session"
	lockFileName  = "current_session.lock"
)

// State tracks which session is active across process runs. The pointer is
// a one-line file in the data directory; a file lock serializes access
// between concurrent processes.
type State struct {
	dir string
}

// NewState creates a State rooted at dir.
func NewState(dir string) *State {
	return &State{dir: dir}
}

func (st *State) path() string { return filepath.Join(st.dir, stateFileName) }

func (st *State) withLock(fn func() error) error {
	lock := flock.New(filepath.Join(st.dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking session state: %w", err)
	}
	defer lock.Unlock()
	return fn()
}

// Active returns the active session ID, or "" when none is set.
func (st *State) Active() (string, error) {
	var id string
	err := st.withLock(func() error {
		data, err := os.ReadFile(st.path())
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading session state: %w", err)
		}
		id = strings.TrimSpace(string(data))
		return nil
	})
	return id, err
}

// SetActive records the active session ID. The write goes through a temp
// file and rename so a crash never leaves a torn pointer.
func (st *State) SetActive(id string) error {
	return st.withLock(func() error {
		tmp, err := os.CreateTemp(st.dir, stateFileName+".*")
		if err != nil {
			return fmt.Errorf("creating session state temp file: %w", err)
		}
		tmpName := tmp.Name()

		if _, err := tmp.WriteString(id + "\n"); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing session state: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("closing session state temp file: %w", err)
		}
		if err := os.Rename(tmpName, st.path()); err != nil {
			os.Remove(tmpName)
			return fmt.Errorf("replacing session state: %w", err)
		}
		return nil
	})
}

// Clear removes the active-session pointer. Clearing when no pointer
// exists is a no-op.
func (st *State) Clear() error {
	return st.withLock(func() error {
		err := os.Remove(st.path())
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clearing session state: %w", err)
		}
		return nil
	})
}
