package style

import (
	"errors"
	"fmt"
	"sync"
)

// Library errors.
var (
	// ErrDuplicateStyle is returned when registering a second style with the
	// same name.
	ErrDuplicateStyle = errors.New("style: duplicate style name")

	// ErrParentNotFound is returned when a declared parent is not registered.
	ErrParentNotFound = errors.New("style: parent style not found")

	// ErrCyclicInheritance is returned when a parent chain loops.
	ErrCyclicInheritance = errors.New("style: cyclic style inheritance")

	// ErrStyleRegistered is returned when a style already belongs to a library.
	ErrStyleRegistered = errors.New("style: style already registered")
)

// Library is a registry of loaded styles. Parent links are stored as
// indices into the library and bound by ResolveDependencies.
//
// Library is safe for concurrent use.
type Library struct {
	mu     sync.RWMutex
	styles []*Style
	byName map[string]int
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{byName: make(map[string]int)}
}

// Register adds a style. Its parent is not bound until ResolveDependencies.
func (l *Library) Register(s *Style) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s.library != nil {
		return fmt.Errorf("%w: %q", ErrStyleRegistered, s.Name())
	}
	if _, dup := l.byName[s.Name()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateStyle, s.Name())
	}
	s.library = l
	s.parentIndex = -1
	l.byName[s.Name()] = len(l.styles)
	l.styles = append(l.styles, s)
	return nil
}

// Style returns the style registered under name.
func (l *Library) Style(name string) (*Style, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byName[name]
	if !ok {
		return nil, false
	}
	return l.styles[i], true
}

// Styles returns the registered styles in registration order.
func (l *Library) Styles() []*Style {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Style, len(l.styles))
	copy(out, l.styles)
	return out
}

// Len returns the number of registered styles.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.styles)
}

// ResolveDependencies binds every unbound parent reference. Styles whose
// parent is missing or whose chain is cyclic stay unbound and are reported
// in the returned error; all other styles are bound.
func (l *Library) ResolveDependencies() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, s := range l.styles {
		if s.IsStandalone() || s.parentIndex >= 0 {
			continue
		}
		idx, ok := l.byName[s.parentName]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q needs %q", ErrParentNotFound, s.name, s.parentName))
			continue
		}
		if l.reachesLocked(idx, s) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrCyclicInheritance, s.name))
			continue
		}
		s.parentIndex = idx
	}
	return errors.Join(errs...)
}

// reachesLocked reports whether following bound parents from styles[idx]
// arrives at target.
func (l *Library) reachesLocked(idx int, target *Style) bool {
	for steps := 0; idx >= 0 && steps <= len(l.styles); steps++ {
		st := l.styles[idx]
		if st == target {
			return true
		}
		if st.IsStandalone() {
			return false
		}
		if st.parentIndex < 0 {
			// Unbound parent: follow by name to catch cycles among styles
			// resolved in the same pass.
			next, ok := l.byName[st.parentName]
			if !ok {
				return false
			}
			idx = next
			continue
		}
		idx = st.parentIndex
	}
	return true
}

// parentOf returns the bound parent of s. parentIndex is written by
// ResolveDependencies and read here under the same lock.
func (l *Library) parentOf(s *Style) *Style {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := s.parentIndex
	if i < 0 || i >= len(l.styles) {
		return nil
	}
	return l.styles[i]
}
