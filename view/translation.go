package view

import (
	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/node"
	"github.com/viant/sqlparser/query"
)

// Entry maps a view output column ordinal to the expression computing it.
// An entry is updatable only when the expression is a bare column reference
// with no transformation.
type Entry struct {
	Ordinal   int
	Name      string
	Expr      node.Node
	Ns        string
	Column    string
	Updatable bool
}

// Translation is the ordered field translation table of a merged view.
type Translation []*Entry

// Lookup returns the entry with the supplied output name.
func (t Translation) Lookup(name string) *Entry {
	for _, entry := range t {
		if entry.Name == name {
			return entry
		}
	}
	return nil
}

// Covers reports whether the supplied base column is exposed as an
// updatable output column.
func (t Translation) Covers(column string) bool {
	for _, entry := range t {
		if entry.Updatable && entry.Column == column {
			return true
		}
	}
	return false
}

// NewTranslation builds the field translation table of a defining query.
func NewTranslation(sel *query.Select) Translation {
	var result Translation
	for i, item := range sel.List {
		if item == nil {
			continue
		}
		entry := &Entry{Ordinal: i, Expr: item.Expr, Name: item.Alias}
		switch actual := item.Expr.(type) {
		case *expr.Ident:
			entry.Column = actual.Name
			entry.Updatable = true
		case *expr.Selector:
			entry.Ns = actual.Name
			entry.Column = sqlparser.Stringify(actual.X)
			entry.Updatable = true
		case *expr.Star:
			entry.Name = "*"
		}
		if entry.Name == "" {
			if entry.Column != "" {
				entry.Name = entry.Column
			} else {
				entry.Name = sqlparser.Stringify(item.Expr)
			}
		}
		result = append(result, entry)
	}
	return result
}

// Rename applies an explicit output column name list; len(names) has to
// match the select list, the caller verifies arity beforehand.
func (t Translation) Rename(names []string) {
	for i, entry := range t {
		if i < len(names) {
			entry.Name = names[i]
		}
	}
}
