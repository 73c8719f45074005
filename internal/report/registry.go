package report

import (
	"fmt"

	"github.com/loadforge/loadforge/internal/core/ports"
)

// Registry looks up a ports.ResultWriter by its registered format name
// (json, csv, xml), mirroring provider.Registry's shape.
type Registry struct {
	writers map[string]ports.ResultWriter
}

// NewRegistry builds a Registry pre-populated with every built-in writer.
func NewRegistry() *Registry {
	r := &Registry{writers: make(map[string]ports.ResultWriter)}
	r.Register(NewJSONWriter())
	r.Register(NewCSVWriter())
	r.Register(NewXMLWriter())
	return r
}

func (r *Registry) Register(w ports.ResultWriter) {
	r.writers[w.Format()] = w
}

// Get returns the writer registered under format, defaulting to "json"
// when format is empty.
func (r *Registry) Get(format string) (ports.ResultWriter, error) {
	if format == "" {
		format = "json"
	}
	w, ok := r.writers[format]
	if !ok {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return w, nil
}
