// Package profiler collects per-request profiles from data collectors and
// persists them.
//
//	p := profiler.New(storage, logger)
//	p.Add(collector.NewRequestCollector())
//	profile := p.Collect(r, res, nil)
//	err := p.SaveProfile(ctx, profile)
//
// The Listener drives this from the kernel events.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/kernel"
	"github.com/km-arc/go-laravel-webprofiler/profiler/collector"
)

// TokenHeader carries the profile token on profiled responses.
const TokenHeader = "X-Debug-Token"

// ErrUnknownCollector is returned by Get for names never added.
var ErrUnknownCollector = errors.New("unknown data collector")

// Profiler holds the collectors and the storage.
type Profiler struct {
	storage Storage
	logger  *slog.Logger

	mu         sync.RWMutex
	collectors map[string]collector.DataCollector
	order      []string
	enabled    bool
	initially  bool
}

// New creates an enabled Profiler. logger may be nil.
func New(storage Storage, logger *slog.Logger) *Profiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiler{
		storage:    storage,
		logger:     logger,
		collectors: make(map[string]collector.DataCollector),
		enabled:    true,
		initially:  true,
	}
}

// Storage returns the profile storage.
func (p *Profiler) Storage() Storage { return p.storage }

// Add attaches c, replacing a collector with the same name in place.
func (p *Profiler) Add(c collector.DataCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.collectors[c.Name()]; !ok {
		p.order = append(p.order, c.Name())
	}
	p.collectors[c.Name()] = c
}

// Get returns the collector called name.
func (p *Profiler) Get(name string) (collector.DataCollector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.collectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollector, name)
	}
	return c, nil
}

// Has reports whether a collector called name is attached.
func (p *Profiler) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.collectors[name]
	return ok
}

// All returns the collectors in the order they were added.
func (p *Profiler) All() []collector.DataCollector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]collector.DataCollector, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.collectors[name])
	}
	return out
}

// Enable turns collection on.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
}

// Disable turns collection off until Enable or Reset.
func (p *Profiler) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
}

// IsEnabled reports whether Collect produces profiles.
func (p *Profiler) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Collect builds the profile of r. It returns nil when disabled. The
// token is also set as the TokenHeader of res.
func (p *Profiler) Collect(r *http.Request, res *kernel.Response, err error) *Profile {
	if !p.IsEnabled() {
		return nil
	}
	profile := NewProfile(newToken())
	if start, ok := kernel.StartTime(r); ok {
		profile.Time = start
	}
	req := gohttp.NewRequest(r)
	profile.IP = req.IP()
	profile.Method = r.Method
	profile.URL = req.FullURL()
	if res != nil {
		profile.StatusCode = res.StatusCode
		res.Header().Set(TokenHeader, profile.Token)
	}

	for _, c := range p.All() {
		c.Collect(r, res, err)
		profile.Collectors[c.Name()] = c.Data()
		profile.live = append(profile.live, c)
	}
	return profile
}

// LateCollect runs the late collectors of profile and freezes their data.
// Later calls are no-ops, so a profile finished early keeps its own data
// when the collectors move on to another request.
func (p *Profiler) LateCollect(profile *Profile) {
	for _, c := range profile.live {
		if late, ok := c.(collector.LateDataCollector); ok {
			late.LateCollect()
			profile.Collectors[c.Name()] = c.Data()
		}
	}
	profile.live = nil
}

// SaveProfile runs the late collectors of profile and writes it.
func (p *Profiler) SaveProfile(ctx context.Context, profile *Profile) error {
	p.LateCollect(profile)

	if err := p.storage.Write(ctx, profile); err != nil {
		return fmt.Errorf("save profile %s: %w", profile.Token, err)
	}
	p.logger.Debug("profile saved", "token", profile.Token, "url", profile.URL)
	return nil
}

// LoadProfile reads the profile stored under token.
func (p *Profiler) LoadProfile(ctx context.Context, token string) (*Profile, error) {
	return p.storage.Read(ctx, token)
}

// LoadProfileFromResponse reads the profile whose token res carries.
func (p *Profiler) LoadProfileFromResponse(ctx context.Context, res *kernel.Response) (*Profile, error) {
	token := res.Header().Get(TokenHeader)
	if token == "" {
		return nil, ErrProfileNotFound
	}
	return p.LoadProfile(ctx, token)
}

// Find searches the stored profiles.
func (p *Profiler) Find(ctx context.Context, c Criteria) ([]Summary, error) {
	return p.storage.Find(ctx, c)
}

// Purge deletes every stored profile.
func (p *Profiler) Purge(ctx context.Context) error {
	return p.storage.Purge(ctx)
}

// Reset clears every collector and restores the initial enabled state.
func (p *Profiler) Reset() {
	for _, c := range p.All() {
		c.Reset()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = p.initially
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

