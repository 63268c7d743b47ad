package transport

import (
	"sync"

	errors "github.com/xraph/go-utils/errs"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"
)

// RegistryConfig configures a transport registry.
type RegistryConfig struct {
	Logger  logger.Logger
	Metrics metrics.Metrics
}

// Registry holds named transports so callers can switch backends (mock,
// SSE, a provider-specific client) at runtime.
type Registry struct {
	mu         sync.RWMutex
	transports map[string]StreamTransport
	logger     logger.Logger
	metrics    metrics.Metrics
}

// NewRegistry creates an empty transport registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	return &Registry{
		transports: make(map[string]StreamTransport),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}, nil
}

// Register adds a transport under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, t StreamTransport) error {
	if name == "" {
		return errors.New("transport name is required")
	}
	if t == nil {
		return errors.New("transport is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.transports[name] = t

	if r.logger != nil {
		r.logger.Info("registered transport", logger.String("name", name))
	}
	if r.metrics != nil {
		r.metrics.Counter("agentloop.transport.registered",
			metrics.WithLabel("name", name),
		).Inc()
	}

	return nil
}

// Get returns the transport registered under name.
func (r *Registry) Get(name string) (StreamTransport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transports[name]

	return t, ok
}

// Has reports whether a transport is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.transports[name]

	return ok
}

// Names returns the registered transport names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.transports))
	for name := range r.transports {
		names = append(names, name)
	}

	return names
}
