package remote

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
)

// TokenFile is a TokenSource backed by a file holding the bearer token.
// After Watch, the token is reloaded whenever the file is rewritten,
// replaced or removed, so a re-login takes effect without a restart.
type TokenFile struct {
	path string

	mu    sync.RWMutex
	token string

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	closed  bool
}

// NewTokenFile reads the token at path. A missing file yields an empty
// token.
func NewTokenFile(path string) (*TokenFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "token file path", err)
	}
	t := &TokenFile{path: abs}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Token returns the current token.
func (t *TokenFile) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// Path returns the watched file.
func (t *TokenFile) Path() string {
	return t.path
}

func (t *TokenFile) reload() error {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = nil, nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "read token file", err)
	}
	token := strings.TrimSpace(string(data))

	t.mu.Lock()
	changed := token != t.token
	t.token = token
	t.mu.Unlock()

	if changed {
		logging.Info("Remote token reloaded", map[string]interface{}{
			"path":    t.path,
			"present": token != "",
		})
	}
	return nil
}

// Watch starts reloading the token on changes until ctx ends or Close is
// called. The parent directory is watched so editors that replace the
// file are picked up.
func (t *TokenFile) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "create token watcher", err)
	}
	if err := w.Add(filepath.Dir(t.path)); err != nil {
		w.Close()
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "watch token directory", err)
	}

	t.mu.Lock()
	t.watcher = w
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(ctx, w)
	return nil
}

func (t *TokenFile) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != t.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := t.reload(); err != nil {
				logging.Error("Failed to reload remote token", err, map[string]interface{}{"path": t.path})
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logging.Warn("Token watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Close stops watching.
func (t *TokenFile) Close() error {
	t.mu.Lock()
	if t.closed || t.watcher == nil {
		t.closed = true
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	w := t.watcher
	t.mu.Unlock()

	err := w.Close()
	t.wg.Wait()
	return err
}
