package view

import (
	"strings"

	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/node"
	"github.com/viant/sqlparser/query"
)

var aggregates = map[string]bool{
	"count":        true,
	"sum":          true,
	"avg":          true,
	"min":          true,
	"max":          true,
	"group_concat": true,
	"std":          true,
	"stddev":       true,
	"variance":     true,
	"bit_and":      true,
	"bit_or":       true,
	"bit_xor":      true,
}

// CanMerge reports whether a defining query allows the merge algorithm:
// no aggregation, no GROUP BY/HAVING, no DISTINCT, no set operations and at
// least one table. The canonical text is the stored defining text of sel,
// used only for the DISTINCT test which the AST does not carry.
func CanMerge(sel *query.Select, canonical string) bool {
	if sel == nil {
		return false
	}
	if sel.From.X == nil && len(sel.Joins) == 0 {
		return false
	}
	if sel.Union != nil {
		return false
	}
	if len(sel.GroupBy) > 0 || sel.Having != nil {
		return false
	}
	if isDistinct(canonical) {
		return false
	}
	return !hasAggregate(sel.List)
}

func isDistinct(canonical string) bool {
	text := strings.ToLower(strings.TrimSpace(canonical))
	return strings.HasPrefix(text, "select distinct")
}

func hasAggregate(list query.List) bool {
	for _, item := range list {
		if item == nil || item.Expr == nil {
			continue
		}
		if found := containsAggregate(item.Expr); found {
			return true
		}
	}
	return false
}

func containsAggregate(n node.Node) bool {
	result := false
	sqlparser.Traverse(n, func(candidate node.Node) bool {
		call, ok := candidate.(*expr.Call)
		if !ok {
			return true
		}
		text := strings.ToLower(sqlparser.Stringify(call))
		if index := strings.Index(text, "("); index != -1 {
			text = strings.TrimSpace(text[:index])
		}
		if aggregates[text] {
			result = true
			return false
		}
		return true
	})
	return result
}

// HasOuterJoin reports whether any join of a defining query is an outer join.
func HasOuterJoin(sel *query.Select) bool {
	for _, join := range sel.Joins {
		if join == nil {
			continue
		}
		kind := strings.ToUpper(join.Kind)
		if kind == "" {
			kind = strings.ToUpper(join.Raw)
		}
		if strings.Contains(kind, "LEFT") || strings.Contains(kind, "RIGHT") ||
			strings.Contains(kind, "FULL") || strings.Contains(kind, "OUTER") {
			return true
		}
	}
	return false
}

// DefinitionUpdatable reports whether a defining query yields an updatable
// view: mergeable, no outer joins and a materialize request absent.
func DefinitionUpdatable(sel *query.Select, canonical string, algorithm Algorithm) bool {
	if algorithm == AlgorithmMaterialize {
		return false
	}
	if !CanMerge(sel, canonical) {
		return false
	}
	return !HasOuterJoin(sel)
}
