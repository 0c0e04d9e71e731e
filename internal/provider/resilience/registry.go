package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level grades a provider for the status endpoint.
type Level int

const (
	LevelUp Level = iota
	LevelDegraded
	LevelDown
)

// ProviderHealth is a snapshot of one upstream provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State

	Calls               int64
	Failures            int64
	ConsecutiveFailures int64

	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastError     string
}

// Level is LevelDown while the circuit is open and LevelDegraded while it is
// probing or the latest call failed.
func (h ProviderHealth) Level() Level {
	switch {
	case h.CircuitState == gobreaker.StateOpen:
		return LevelDown
	case h.CircuitState == gobreaker.StateHalfOpen, h.ConsecutiveFailures > 0:
		return LevelDegraded
	default:
		return LevelUp
	}
}

// Registry holds the provider clients of this process and the outcome of
// every call made through them.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*tracked
	now       func() time.Time
}

type tracked struct {
	client *Client
	health ProviderHealth
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*tracked),
		now:       time.Now,
	}
}

// Register adds client under name. Re-registering a name resets its history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &tracked{client: client, health: ProviderHealth{Name: name}}
}

// Unregister drops name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
}

// Record stores the outcome of one call; a nil err is a success. Calls for
// unknown providers are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[name]
	if !ok {
		return
	}
	h := &p.health
	h.Calls++
	if err == nil {
		h.ConsecutiveFailures = 0
		h.LastSuccessAt = r.now()
		return
	}
	h.Failures++
	h.ConsecutiveFailures++
	h.LastFailureAt = r.now()
	h.LastError = err.Error()
}

// Health returns the snapshot for name.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return p.snapshot(), true
}

// Snapshot returns every provider ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *tracked) snapshot() ProviderHealth {
	h := p.health
	h.CircuitState = p.client.CircuitBreakerState()
	return h
}
