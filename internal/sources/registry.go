package sources

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Adapter)
)

// Register adds an adapter to the registry. Adapters call this from init().
// Registering the same key twice panics; it is a programming error.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	key := a.Source()
	if _, dup := registry[key]; dup {
		panic(fmt.Sprintf("sources: duplicate adapter registration for %q", key))
	}
	registry[key] = a
}

// Lookup resolves a source key to its adapter.
func Lookup(key string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[key]
	return a, ok
}

// Keys returns all registered source keys, sorted.
func Keys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
