package format

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/cycler-cli/internal/model"
	"github.com/sells-group/cycler-cli/internal/textio"
)

// Registry maps variants to their handlers.
type Registry struct {
	handlers map[model.Variant]Handler
	order    []model.Variant // insertion order for deterministic iteration
}

// NewRegistry creates a registry with the Toyo1, Toyo2 and PNE handlers.
func NewRegistry(r *textio.Reader) *Registry {
	reg := &Registry{
		handlers: make(map[model.Variant]Handler),
	}
	reg.Register(NewToyo1(r))
	reg.Register(NewToyo2(r))
	reg.Register(NewPNE(r))
	return reg
}

// Register adds a handler, replacing any handler for the same variant.
func (r *Registry) Register(h Handler) {
	v := h.Variant()
	if _, exists := r.handlers[v]; !exists {
		r.order = append(r.order, v)
	}
	r.handlers[v] = h
}

// Get returns the handler for a variant.
func (r *Registry) Get(v model.Variant) (Handler, error) {
	h, ok := r.handlers[v]
	if !ok {
		return nil, eris.Errorf("format: unknown variant %q", v)
	}
	return h, nil
}

// All returns handlers in registration order.
func (r *Registry) All() []Handler {
	out := make([]Handler, 0, len(r.order))
	for _, v := range r.order {
		out = append(out, r.handlers[v])
	}
	return out
}

// Primary returns the handler a family starts with before any file has been
// inspected: Toyo2 for TOYO (promoted to Toyo1 per channel), PNE for PNE.
func (r *Registry) Primary(f model.Format) (Handler, error) {
	switch f {
	case model.FormatToyo:
		return r.Get(model.VariantToyo2)
	case model.FormatPNE:
		return r.Get(model.VariantPNE)
	default:
		return nil, eris.Errorf("format: no handler for %s", f)
	}
}
