// Package session holds per-session state shared between handlers: the
// session identity, the subject binding and the flags the recognition path
// uses to talk back to voice-activity gating.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// SharedFlags are the mutable flags shared between a session's handlers and
// its host. EnableVAD is raised by the recognition handler when a turn ends
// with no recognized speech so the host re-arms silence detection.
type SharedFlags struct {
	mu        sync.Mutex
	enableVAD bool
}

// SetEnableVAD sets the silence-gating re-arm flag.
func (f *SharedFlags) SetEnableVAD(v bool) {
	f.mu.Lock()
	f.enableVAD = v
	f.mu.Unlock()
}

// EnableVAD reports the silence-gating re-arm flag.
func (f *SharedFlags) EnableVAD() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enableVAD
}

// Context is the per-session context handed to every handler.
type Context struct {
	ID        string
	SubjectID string
	Shared    *SharedFlags
}

// NewContext creates a session context. An empty id gets a generated one.
func NewContext(id string) *Context {
	if id == "" {
		id = uuid.NewString()
	}
	return &Context{ID: id, Shared: &SharedFlags{}}
}
