package runtimex

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"go.eggybyte.com/orchid/core/errors"
	"go.eggybyte.com/orchid/core/log"
	"go.eggybyte.com/orchid/obsx"
)

// BuildFunc constructs a resource from its settings section. It must either
// return a fully usable resource or an error, and must be safe to run
// concurrently with other factories.
type BuildFunc func(ctx context.Context, section any, env BuildEnv) (any, error)

// BuildEnv is what the manager hands to a factory besides its section.
type BuildEnv struct {
	Name     string
	Logger   log.Logger
	Recorder obsx.Recorder
}

// Factory binds a settings field to a constructor. Startup calls Build only
// when the settings value has a non-nil field named Field.
type Factory struct {
	Field string
	Build BuildFunc
}

// NamedFactory is a Factory together with the resource name it registers.
type NamedFactory struct {
	Name string
	Factory
}

// Registry maps resource names to factories, in registration order.
type Registry struct {
	mu        sync.Mutex
	names     []string
	factories map[string]Factory
	builtins  bool
	armed     bool
}

// NewRegistry returns an empty registry without the built-in factories.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

var defaultRegistry = &Registry{factories: make(map[string]Factory), builtins: true}

// DefaultRegistry returns the process-wide registry. Its built-in factories
// are added on first use, after anything the caller registered, and never
// replace a caller's factory of the same name.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds or replaces the factory for name. A replaced factory keeps
// its original position.
func (r *Registry) Register(name string, f Factory) error {
	switch {
	case name == "":
		return errors.New(errors.CodeInvalidArgument, "factory name is empty")
	case f.Field == "":
		return errors.Newf(errors.CodeInvalidArgument, "factory %s: settings field is empty", name)
	case f.Build == nil:
		return errors.Newf(errors.CodeInvalidArgument, "factory %s: build function is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(name, f)
	return nil
}

func (r *Registry) put(name string, f Factory) {
	if _, ok := r.factories[name]; !ok {
		r.names = append(r.names, name)
	}
	r.factories[name] = f
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arm()
	_, ok := r.factories[name]
	return ok
}

// Factories returns a snapshot of the registered factories in order.
func (r *Registry) Factories() []NamedFactory {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arm()
	out := make([]NamedFactory, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, NamedFactory{Name: name, Factory: r.factories[name]})
	}
	return out
}

// Reset removes every factory. The default registry adds its built-ins again
// on next use.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = nil
	r.factories = make(map[string]Factory)
	r.armed = false
}

func (r *Registry) arm() {
	if !r.builtins || r.armed {
		return
	}
	for _, nf := range builtinFactories() {
		if _, ok := r.factories[nf.Name]; !ok {
			r.put(nf.Name, nf.Factory)
		}
	}
	r.armed = true
}

// RegisterFactory registers f under name in the default registry.
func RegisterFactory(name string, f Factory) error {
	return defaultRegistry.Register(name, f)
}

// Factories lists the default registry.
func Factories() []NamedFactory {
	return defaultRegistry.Factories()
}

// ResetFactories clears the default registry. Meant for test isolation.
func ResetFactories() {
	defaultRegistry.Reset()
}

// BuiltinNames lists the names of the built-in factories.
func BuiltinNames() []string {
	var names []string
	for _, nf := range builtinFactories() {
		names = append(names, nf.Name)
	}
	return names
}

// sectionOf returns the value of field on settings and whether it is present.
// settings may be a struct, a pointer to one, or a map keyed by field name.
// Nil pointers, interfaces, maps and slices count as absent.
func sectionOf(settings any, field string) (any, bool) {
	v := reflect.ValueOf(settings)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	var f reflect.Value
	switch v.Kind() {
	case reflect.Struct:
		sf, ok := v.Type().FieldByName(field)
		if !ok || !sf.IsExported() {
			return nil, false
		}
		f = v.FieldByIndex(sf.Index)
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		f = v.MapIndex(reflect.ValueOf(field).Convert(v.Type().Key()))
	default:
		return nil, false
	}

	if !f.IsValid() {
		return nil, false
	}
	if slices.Contains([]reflect.Kind{reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice}, f.Kind()) && f.IsNil() {
		return nil, false
	}
	return f.Interface(), true
}
