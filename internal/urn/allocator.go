package urn

import "sync"

// Allocator assigns URNs within one session and enforces uniqueness.
//
// Each reservation records the request hash of the registration that
// claimed the URN. A second Allocate for the same URN succeeds only
// when it carries the identical hash - that is an idempotent retry of
// the same logical request. Any other hash fails with
// DuplicateIdentityError and has no side effects.
//
// Thread-safety: safe for concurrent use; registrations for unrelated
// resources contend only on the short reservation map insert.
type Allocator struct {
	stack   string
	project string

	mu       sync.Mutex
	reserved map[URN]string // urn -> request hash that claimed it
}

// NewAllocator creates an allocator scoped to one stack and project.
func NewAllocator(stack, project string) *Allocator {
	return &Allocator{
		stack:    stack,
		project:  project,
		reserved: make(map[URN]string),
	}
}

// Allocate composes and reserves the URN for (parent, typ, name).
//
// requestHash identifies the logical registration request (canonical
// hash of type, name, parent, inputs, and hints). The returned retry
// flag is true when the URN was already reserved by the same hash.
func (a *Allocator) Allocate(parent URN, typ, name, requestHash string) (u URN, retry bool, err error) {
	u, err = New(a.stack, a.project, parent, typ, name)
	if err != nil {
		return "", false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.reserved[u]; ok {
		if existing == requestHash && requestHash != "" {
			return u, true, nil
		}
		return "", false, &DuplicateIdentityError{URN: u}
	}

	a.reserved[u] = requestHash
	return u, false, nil
}

// Reserved reports whether the URN has been allocated.
func (a *Allocator) Reserved(u URN) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.reserved[u]
	return ok
}

// Len returns the number of reserved URNs.
func (a *Allocator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}
