// Package table defines the table open/lock collaborator contract the view
// subsystem delegates physical table access to.
package table

import (
	"context"
)

// LockMode is the lock requested when a table is opened.
type LockMode int

const (
	LockNone LockMode = iota
	LockRead
	LockWrite
)

// Column describes a base table column.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// Key describes an index of a base table.
type Key struct {
	Name   string
	Unique bool
	Parts  []string
}

// Table is a live handle of an opened base table.
type Table struct {
	Schema    string
	Name      string
	Columns   []*Column
	Keys      []*Key
	Temporary bool
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	for _, column := range t.Columns {
		if column.Name == name {
			return column
		}
	}
	return nil
}

// UniqueNotNullKeys returns keys that are unique with every part declared
// NOT NULL; only such keys can bound a limited update safely.
func (t *Table) UniqueNotNullKeys() []*Key {
	var result []*Key
	for _, key := range t.Keys {
		if !key.Unique {
			continue
		}
		nullable := false
		for _, part := range key.Parts {
			column := t.Column(part)
			if column == nil || !column.NotNull {
				nullable = true
				break
			}
		}
		if !nullable {
			result = append(result, key)
		}
	}
	return result
}

// Service resolves table names to live handles honoring a lock mode.
type Service interface {
	Open(ctx context.Context, schema, name string, mode LockMode) (*Table, error)
}
