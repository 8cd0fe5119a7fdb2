// Package bridge exposes the sync core to foreign callers through one JSON
// call surface: a method name and a JSON payload in, a Response envelope
// out. The mobile shared library is a thin cgo wrapper around it.
package bridge

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kimhsiao/lifelog/backend/internal/app"
	"github.com/kimhsiao/lifelog/backend/internal/config"
	apperrors "github.com/kimhsiao/lifelog/backend/internal/errors"
	"github.com/kimhsiao/lifelog/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifelog/backend/internal/sync"
)

// Response is the envelope returned for every call.
type Response struct {
	OK    bool                `json:"ok"`
	Data  any                 `json:"data,omitempty"`
	Error string              `json:"error,omitempty"`
	Code  apperrors.ErrorCode `json:"code,omitempty"`
}

func failure(err error) Response {
	return Response{Error: err.Error(), Code: apperrors.CodeOf(err)}
}

func encode(r Response) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		data, _ = json.Marshal(failure(apperrors.Wrap(apperrors.ErrInternal, "encode response", err)))
	}
	return data
}

type handler func(ctx context.Context, a *app.App, payload []byte) (any, error)

// Bridge owns one opened App.
type Bridge struct {
	mu      sync.RWMutex
	app     *app.App
	cancel  context.CancelFunc
	methods map[string]handler
}

// New creates a closed Bridge.
func New() *Bridge {
	return &Bridge{methods: methods()}
}

// Methods lists the callable method names.
func (b *Bridge) Methods() []string {
	names := make([]string, 0, len(b.methods))
	for name := range b.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open parses rawConfig over the defaults, opens the core and starts the
// lifecycle trigger. rawConfig may be YAML or JSON using the config file
// keys; an empty document means all defaults.
func (b *Bridge) Open(rawConfig []byte, opts ...app.Option) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.app != nil {
		return encode(failure(apperrors.New(apperrors.ErrInvalid, "already open")))
	}

	cfg := config.NewDefaultConfig()
	if err := yaml.Unmarshal(rawConfig, cfg); err != nil {
		return encode(failure(apperrors.Wrap(apperrors.ErrConfigInvalid, "parse config", err)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a, err := app.Open(ctx, cfg, opts...)
	if err != nil {
		cancel()
		return encode(failure(err))
	}
	if err := a.Start(ctx); err != nil {
		cancel()
		_ = a.Close(context.Background())
		return encode(failure(err))
	}

	b.app = a
	b.cancel = cancel
	return encode(Response{OK: true, Data: a.Engine.Status()})
}

// Close stops the core. Closing a closed Bridge is a no-op.
func (b *Bridge) Close() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.app == nil {
		return encode(Response{OK: true})
	}
	b.cancel()
	err := b.app.Close(context.Background())
	b.app = nil
	b.cancel = nil
	if err != nil {
		return encode(failure(err))
	}
	return encode(Response{OK: true})
}

// Call runs method with payload. A nil or empty payload is treated as {}.
func (b *Bridge) Call(method string, payload []byte) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.app == nil {
		return encode(failure(apperrors.New(apperrors.ErrInvalid, "core is not open")))
	}
	h, ok := b.methods[method]
	if !ok {
		return encode(failure(apperrors.Newf(apperrors.ErrInvalid, "unknown method %q", method)))
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	data, err := h(context.Background(), b.app, payload)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.ErrInternal {
			logging.Error("Bridge call failed", err, map[string]interface{}{"method": method})
		}
		resp := failure(err)
		// a failed pass still reports what it did
		if res, ok := data.(*syncpkg.Result); ok && res != nil {
			resp.Data = res
		}
		return encode(resp)
	}
	return encode(Response{OK: true, Data: data})
}
