package source

import (
	"fmt"
	"sort"
	"sync"

	"github.com/phimhub/ingest/internal/util"
)

// Factory builds an adapter from its configuration
type Factory func(cfg SourceConfig) (Adapter, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

// Register makes an adapter kind available; adapters call it from init
func Register(kind string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("source: nil factory for kind %s", kind))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := factories[kind]; exists {
		util.WarnLog("source: kind %s registered twice, replacing", kind)
	}
	factories[kind] = factory
}

// Kinds lists the registered adapter kinds
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds the adapter for cfg.Kind
func New(cfg SourceConfig) (Adapter, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := factories[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown source kind %q for %s (registered: %v)",
			util.ErrInvalidConfig, cfg.Kind, cfg.Key, Kinds())
	}
	return factory(cfg)
}
