package threadmanager

import (
	"sync"

	"github.com/Swind/go-thread-manager/core"
)

// =============================================================================
// Global Thread Manager Helper (Singleton)
// =============================================================================

var (
	globalManager *ThreadManager
	globalMu      sync.Mutex
)

// InitGlobalManager creates the global ThreadManager. A nil config uses
// core.DefaultManagerConfig. Later calls are no-ops until ShutdownGlobalManager.
func InitGlobalManager(cfg *ManagerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return // Already initialized
	}

	globalManager = core.NewThreadManager(cfg)
}

// GetGlobalManager returns the global ThreadManager.
// It panics if InitGlobalManager has not been called.
func GetGlobalManager() *ThreadManager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("global ThreadManager not initialized. Call InitGlobalManager() first.")
	}
	return globalManager
}

// ShutdownGlobalManager unregisters every family of the global manager and
// discards it.
func ShutdownGlobalManager() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		globalManager.Close()
		globalManager = nil
	}
}

// Register creates a job family on the global manager.
func Register(fn JobFunc, name string) (JobHandle, error) {
	return GetGlobalManager().Register(fn, name)
}
