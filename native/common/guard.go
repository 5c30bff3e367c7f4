package common

import (
	"errors"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// MemoryPauses is an in-process pause switchboard satisfying PauseView.
type MemoryPauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

func NewMemoryPauses() *MemoryPauses {
	return &MemoryPauses{paused: make(map[string]bool)}
}

func (m *MemoryPauses) IsPaused(module string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused[module]
}

// SetPaused toggles the pause flag for a module.
func (m *MemoryPauses) SetPaused(module string, paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused[module] = paused
}
