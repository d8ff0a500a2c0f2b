package revali

import "sync"

// Environment exposes host signals the engine reacts to: page visibility and
// network connectivity. Hosts without such signals use NoopEnvironment, which
// degrades to "always visible, always online".
type Environment interface {
	// IsHidden reports whether the host considers itself hidden from the user.
	IsHidden() bool

	// IsOffline reports whether the host considers the network unavailable.
	IsOffline() bool

	// OnVisibilityChange registers fn to run on every visibility transition
	// and returns a function that removes the registration.
	OnVisibilityChange(fn func()) (stop func())

	// OnNetworkChange registers fn to run on every connectivity transition
	// and returns a function that removes the registration.
	OnNetworkChange(fn func()) (stop func())
}

// NoopEnvironment satisfies Environment for hosts without visibility or
// network signals.
type NoopEnvironment struct{}

func (NoopEnvironment) IsHidden() bool                          { return false }
func (NoopEnvironment) IsOffline() bool                         { return false }
func (NoopEnvironment) OnVisibilityChange(func()) (stop func()) { return func() {} }
func (NoopEnvironment) OnNetworkChange(func()) (stop func())    { return func() {} }

// SignalEnvironment is an Environment driven programmatically. Host adapters
// feed visibility and connectivity transitions through SetHidden and
// SetOffline; the engine observes them through the Environment interface.
// It is safe for concurrent use.
type SignalEnvironment struct {
	mu           sync.Mutex
	hidden       bool
	offline      bool
	nextID       uint64
	visListeners map[uint64]func()
	netListeners map[uint64]func()
}

// NewSignalEnvironment returns a SignalEnvironment that starts visible and
// online.
func NewSignalEnvironment() *SignalEnvironment {
	return &SignalEnvironment{
		visListeners: make(map[uint64]func()),
		netListeners: make(map[uint64]func()),
	}
}

func (s *SignalEnvironment) IsHidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

func (s *SignalEnvironment) IsOffline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// SetHidden records a visibility transition and notifies listeners when the
// state actually changed.
func (s *SignalEnvironment) SetHidden(hidden bool) {
	s.mu.Lock()
	if s.hidden == hidden {
		s.mu.Unlock()
		return
	}
	s.hidden = hidden
	listeners := make([]func(), 0, len(s.visListeners))
	for _, fn := range s.visListeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// SetOffline records a connectivity transition and notifies listeners when
// the state actually changed.
func (s *SignalEnvironment) SetOffline(offline bool) {
	s.mu.Lock()
	if s.offline == offline {
		s.mu.Unlock()
		return
	}
	s.offline = offline
	listeners := make([]func(), 0, len(s.netListeners))
	for _, fn := range s.netListeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

func (s *SignalEnvironment) OnVisibilityChange(fn func()) (stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.visListeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.visListeners, id)
	}
}

func (s *SignalEnvironment) OnNetworkChange(fn func()) (stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.netListeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.netListeners, id)
	}
}
