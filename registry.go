package fixgate

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// TemplateKey identifies a template by protocol version and message type.
type TemplateKey struct {
	Version     string
	MessageType string
}

func (k TemplateKey) String() string { return k.Version + "/" + k.MessageType }

// Factory produces a fully populated message skeleton. New is called once
// per dispatch and must return a fresh message every time.
//
// Example:
//
//	type cancelRequest struct{ symbol string }
//
//	func (f cancelRequest) New() (*fixgate.Message, error) {
//	    m := fixgate.NewMessage("F")
//	    if err := m.Set(fixgate.TagSymbol, fixgate.String(f.symbol)); err != nil {
//	        return nil, err
//	    }
//	    return m, nil
//	}
type Factory interface {
	New() (*Message, error)
}

// FactoryFunc is a function adapter for Factory:
//
//	reg.Register("FIX.4.4", "ExecutionReport", fixgate.FactoryFunc(func() (*fixgate.Message, error) {
//	    return fixgate.NewMessage("8"), nil
//	}))
type FactoryFunc func() (*Message, error)

// New implements the Factory interface.
func (f FactoryFunc) New() (*Message, error) { return f() }

// Registry maps (version, message type) to factories.
//
// Register is called at startup. Once the registry is sealed (NewGateway
// seals it) it is read-only and safe for concurrent Build calls.
type Registry struct {
	mu      sync.Mutex
	entries map[TemplateKey]Factory
	order   []TemplateKey
	sealed  atomic.Bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[TemplateKey]Factory)}
}

// Register adds a factory. Registering the same key twice, or registering
// after Seal, fails.
func (r *Registry) Register(version, messageType string, f Factory) error {
	if f == nil {
		return fmt.Errorf("register %s/%s: nil factory", version, messageType)
	}
	if version == "" || messageType == "" {
		return fmt.Errorf("register %q/%q: version and message type are required", version, messageType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	key := TemplateKey{Version: version, MessageType: messageType}
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("register %s: template already registered", key)
	}
	r.entries[key] = f
	r.order = append(r.order, key)
	return nil
}

// RegisterFunc registers a function as a factory.
func (r *Registry) RegisterFunc(version, messageType string, fn func() (*Message, error)) error {
	return r.Register(version, messageType, FactoryFunc(fn))
}

// Seal makes the registry read-only.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) lookup(key TemplateKey) (Factory, bool) {
	if !r.sealed.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	f, ok := r.entries[key]
	return f, ok
}

// Build returns a fresh message for the key with BeginString defaulted to
// version. The result never shares state with other builds, even when a
// factory hands out the same instance twice.
func (r *Registry) Build(version, messageType string) (*Message, error) {
	key := TemplateKey{Version: version, MessageType: messageType}
	f, ok := r.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, key)
	}
	m, err := f.New()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", key, err)
	}
	if m == nil {
		return nil, fmt.Errorf("build %s: factory returned no message", key)
	}
	m = m.Clone()
	if m.Header.BeginString == "" {
		m.Header.BeginString = version
	}
	return m, nil
}

// Factory returns the factory registered for key.
func (r *Registry) Factory(key TemplateKey) (Factory, bool) { return r.lookup(key) }

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []TemplateKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TemplateKey, len(r.order))
	copy(out, r.order)
	return out
}

// Validate builds and encodes every registered template with placeholder
// routing fields and returns every failure joined. Call it at startup so
// that factory bugs such as *GroupScopeError stop the process early.
func (r *Registry) Validate(c *Codec) error {
	var errs []error
	for _, key := range r.Keys() {
		m, err := r.Build(key.Version, key.MessageType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		m.Header.SenderCompID = "VALIDATE"
		m.Header.TargetCompID = "VALIDATE"
		m.Header.MsgSeqNum = 1
		if _, err := c.EncodeMessage(m); err != nil {
			errs = append(errs, fmt.Errorf("template %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
