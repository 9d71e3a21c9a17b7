package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[ModuleID]ModuleInfo)
)

// RegisterModule records a module type. It panics on an empty ID, a nil
// constructor or a duplicate registration. Call it from init().
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	switch {
	case info.ID == "":
		panic("core: module ID must not be empty")
	case info.New == nil:
		panic(fmt.Sprintf("core: module %s has no constructor", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[info.ID]; dup {
		panic(fmt.Sprintf("core: module already registered: %s", info.ID))
	}
	registry[info.ID] = info
}

// GetModule returns the ModuleInfo for id.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[ModuleID(id)]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	registryMu.RLock()
	result := make([]ModuleInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, info)
	}
	registryMu.RUnlock()

	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[ModuleID]ModuleInfo)
}
