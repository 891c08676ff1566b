// Package resolve expands persisted view references into an enclosing
// statement, merging the defining query into the caller's tree or detaching
// it as a materialized derived subquery.
package resolve

import (
	"github.com/viant/sqlparser/query"
	"github.com/viant/viewly/table"
)

// Kind is the enclosing statement kind; it drives privilege re-checks and
// updatable key analysis.
type Kind int

const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindExplain
	KindShowCreate
	KindLockTables
)

// Subquery is a subquery attached under the caller's select after a merge
// relocated it from a discarded inner select.
type Subquery struct {
	Select *query.Select
	Owner  *TableRef
}

// Statement is the lexical context of the enclosing statement: its global
// table sequence, the flat list of every select and the relocated
// subqueries. The table sequence is an explicit ordered list; splice and
// restore are indexed insert and remove with O(1) rollback.
type Statement struct {
	Kind       Kind
	Principal  string
	LockMode   table.LockMode
	HasLimit   bool
	AllowMerge bool
	Tables     []*TableRef
	Selects    []*query.Select
	Subqueries []*Subquery
}

// NewStatement creates a statement context; merging is permitted unless the
// outer position forbids it.
func NewStatement(kind Kind, principal string) *Statement {
	return &Statement{Kind: kind, Principal: principal, AllowMerge: true}
}

// Append adds references to the global table sequence.
func (s *Statement) Append(refs ...*TableRef) *Statement {
	s.Tables = append(s.Tables, refs...)
	return s
}

// IndexOf returns the sequence position of ref or -1.
func (s *Statement) IndexOf(ref *TableRef) int {
	for i, candidate := range s.Tables {
		if candidate == ref {
			return i
		}
	}
	return -1
}

// splice records a table sequence insertion so that it can be undone.
type splice struct {
	at    int
	count int
}

// insertAfter places refs immediately after position at, keeping the view's
// own tables contiguous with their reference, and returns the rollback
// record.
func (s *Statement) insertAfter(at int, refs []*TableRef) splice {
	if len(refs) == 0 {
		return splice{at: at + 1}
	}
	tables := make([]*TableRef, 0, len(s.Tables)+len(refs))
	tables = append(tables, s.Tables[:at+1]...)
	tables = append(tables, refs...)
	tables = append(tables, s.Tables[at+1:]...)
	s.Tables = tables
	return splice{at: at + 1, count: len(refs)}
}

// removeRange undoes a recorded splice restoring the original successor
// chain exactly.
func (s *Statement) removeRange(record splice) {
	if record.count == 0 {
		return
	}
	s.Tables = append(s.Tables[:record.at], s.Tables[record.at+record.count:]...)
}

// hasSubquery reports whether the select is already attached; a subquery
// must never be attached twice.
func (s *Statement) hasSubquery(candidate *query.Select) bool {
	for _, subquery := range s.Subqueries {
		if subquery.Select == candidate {
			return true
		}
	}
	return false
}
