package config

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the current config to concurrent readers. A stored config
// is never mutated; Store swaps in a new one.
type Holder struct {
	cur atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(*Config)
}

func NewHolder(cfg *Config) *Holder {
	h := &Holder{}
	h.cur.Store(cfg)
	return h
}

// Load returns the current config snapshot.
func (h *Holder) Load() *Config {
	return h.cur.Load()
}

// Store replaces the config and notifies listeners in registration order.
func (h *Holder) Store(cfg *Config) {
	h.cur.Store(cfg)
	h.mu.Lock()
	ls := append([]func(*Config)(nil), h.listeners...)
	h.mu.Unlock()
	for _, fn := range ls {
		fn(cfg)
	}
}

// OnChange registers fn to run after every Store.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}
