package routes

import "sync"

// Navigator forces the client to another location.
type Navigator interface {
	Navigate(path string)
}

// Redirector records the last forced navigation until the chrome consumes it.
type Redirector struct {
	mu      sync.Mutex
	pending string
}

var _ Navigator = (*Redirector)(nil)

func NewRedirector() *Redirector {
	return new(Redirector)
}

func (r *Redirector) Navigate(path string) {
	r.mu.Lock()
	r.pending = path
	r.mu.Unlock()
}

// Take returns and clears the pending location.
func (r *Redirector) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path := r.pending
	r.pending = ""
	return path, path != ""
}

// Peek returns the pending location without consuming it.
func (r *Redirector) Peek() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}
