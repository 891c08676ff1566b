package table

import (
	"context"
	"sync"

	"github.com/viant/viewly/verror"
)

// Registry is an in memory table service; it backs embedded use and tests,
// a storage engine supplies the production implementation.
type Registry struct {
	mux    sync.RWMutex
	tables map[string]*Table
}

// NewRegistry creates a table registry.
func NewRegistry(tables ...*Table) *Registry {
	result := &Registry{tables: map[string]*Table{}}
	for _, candidate := range tables {
		result.Register(candidate)
	}
	return result
}

// Register adds or replaces a table.
func (r *Registry) Register(candidate *Table) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.tables[key(candidate.Schema, candidate.Name)] = candidate
}

// Open implements Service.
func (r *Registry) Open(ctx context.Context, schema, name string, mode LockMode) (*Table, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	result, ok := r.tables[key(schema, name)]
	if !ok {
		return nil, verror.New(verror.KindNoSuchTable, schema, name)
	}
	return result, nil
}

func key(schema, name string) string {
	return schema + "." + name
}
