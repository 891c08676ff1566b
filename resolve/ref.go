package resolve

import (
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/query"
	"github.com/viant/viewly/table"
	"github.com/viant/viewly/view"
)

// NestedJoin wraps the merged view's own top level join list so the view
// reference behaves as a single nested join node in the outer tree.
type NestedJoin struct {
	Of       *TableRef
	Children []*TableRef
}

// Derived is the materialized subquery handle of a non merged view.
type Derived struct {
	Select *query.Select
	Alias  string
}

// TableRef is one entry of the enclosing statement's table sequence: a base
// table or a view reference in any stage of expansion.
type TableRef struct {
	Schema string
	Name   string
	Alias  string

	//base table state
	Table    *table.Table
	LockMode table.LockMode

	//persisted view state; nil for base tables
	Definition *view.Definition

	//resolution state
	Select         *query.Select
	ViewTables     []*TableRef
	BelongsTo      *TableRef
	Embedding      *NestedJoin
	NestedJoin     *NestedJoin
	Where          *expr.Qualify
	Translation    view.Translation
	Effective      view.Algorithm
	Updatable      bool
	EffectiveCheck view.CheckOption
	Derived        *Derived
	SkipTemporary  bool
	Prelock        bool
}

// IsView reports whether the reference carries a loaded view definition.
func (r *TableRef) IsView() bool {
	return r.Definition != nil
}

// Expanded reports whether the reference was already processed; resolution
// of an expanded reference is a no-op across prepared statement
// re-executions.
func (r *TableRef) Expanded() bool {
	return r.Definition != nil && r.Select != nil
}

// TopView returns the nearest enclosing view of a nested reference, or the
// reference itself.
func (r *TableRef) TopView() *TableRef {
	if r.BelongsTo != nil {
		return r.BelongsTo
	}
	return r
}

// Invalidate drops every resolution artifact so a caller can rebuild the
// reference after its persisted record changed.
func (r *TableRef) Invalidate() {
	r.Definition = nil
	r.Select = nil
	r.ViewTables = nil
	r.NestedJoin = nil
	r.Where = nil
	r.Translation = nil
	r.Effective = view.AlgorithmUndefined
	r.Updatable = false
	r.EffectiveCheck = view.CheckNone
	r.Derived = nil
}
