package event

import (
	"fmt"
	"sort"

	"github.com/c360/semevents/errors"
)

// Constructor turns parsed headers and raw body text into a record of a
// specific variant.
type Constructor func(h Header, body string) (*Record, error)

// Variant binds a syntax tag to its constructor.
type Variant struct {
	Syntax    string
	Construct Constructor
	// AlwaysParse forces eager body decoding even when the caller asked
	// for deferred bodies.
	AlwaysParse bool
}

// Registry maps syntax tags to variants. It is immutable after NewRegistry
// and safe for concurrent use.
type Registry struct {
	variants map[string]Variant
}

// NewRegistry builds a registry from the given variants.
func NewRegistry(variants ...Variant) (*Registry, error) {
	r := &Registry{variants: make(map[string]Variant, len(variants))}
	for _, v := range variants {
		if v.Syntax == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "NewRegistry", "empty syntax")
		}
		if v.Construct == nil {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "NewRegistry",
				fmt.Sprintf("nil constructor for %s", v.Syntax))
		}
		if _, exists := r.variants[v.Syntax]; exists {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "NewRegistry",
				fmt.Sprintf("duplicate syntax %s", v.Syntax))
		}
		r.variants[v.Syntax] = v
	}
	return r, nil
}

var defaultRegistry = func() *Registry {
	r, err := NewRegistry(CommandVariant, TestVariant, JSONVariant)
	if err != nil {
		panic(err)
	}
	return r
}()

// DefaultRegistry returns the registry with the built-in command, test and
// JSON variants.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// With returns a new registry holding r's variants plus the given ones.
func (r *Registry) With(variants ...Variant) (*Registry, error) {
	all := make([]Variant, 0, len(r.variants)+len(variants))
	for _, v := range r.variants {
		all = append(all, v)
	}
	return NewRegistry(append(all, variants...)...)
}

// Lookup returns the variant registered for syntax.
func (r *Registry) Lookup(syntax string) (Variant, bool) {
	v, ok := r.variants[syntax]
	return v, ok
}

// AlwaysParse reports whether bodies of syntax are decoded eagerly.
func (r *Registry) AlwaysParse(syntax string) bool {
	v, ok := r.variants[syntax]
	return ok && v.AlwaysParse
}

// Syntaxes returns the registered syntax tags, sorted.
func (r *Registry) Syntaxes() []string {
	out := make([]string, 0, len(r.variants))
	for s := range r.variants {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Create builds the record variant registered for h.Syntax, decoding the
// body. Unknown syntaxes produce a generic record with a raw body.
func (r *Registry) Create(h Header, body string) (*Record, error) {
	if h.Syntax == "" {
		return nil, errors.Formatf(errors.ErrMissingHeader, "%s", HeaderSyntax)
	}
	if v, ok := r.variants[h.Syntax]; ok {
		return v.Construct(h, body)
	}
	return newRecord(h, KindGeneric, RawBody(body))
}

// CreateDeferred builds a record keeping the body as raw text, unless the
// syntax is always parsed eagerly.
func (r *Registry) CreateDeferred(h Header, body string) (*Record, error) {
	if r.AlwaysParse(h.Syntax) {
		return r.Create(h, body)
	}
	return newRecord(h, KindGeneric, RawBody(body))
}
