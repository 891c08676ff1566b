package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlparser/query"
)

func named(names ...string) []*TableRef {
	var result []*TableRef
	for _, name := range names {
		result = append(result, &TableRef{Schema: "db", Name: name})
	}
	return result
}

func sequence(stmt *Statement) []string {
	var result []string
	for _, ref := range stmt.Tables {
		result = append(result, ref.Name)
	}
	return result
}

func TestStatement_spliceAndRestore(t *testing.T) {
	var testCases = []struct {
		description string
		initial     []string
		at          int
		insert      []string
		expect      []string
	}{
		{
			description: "splice mid sequence",
			initial:     []string{"v", "z"},
			at:          0,
			insert:      []string{"t", "o"},
			expect:      []string{"v", "t", "o", "z"},
		},
		{
			description: "splice at tail",
			initial:     []string{"a", "v"},
			at:          1,
			insert:      []string{"t"},
			expect:      []string{"a", "v", "t"},
		},
		{
			description: "empty splice",
			initial:     []string{"v"},
			at:          0,
			insert:      nil,
			expect:      []string{"v"},
		},
	}

	for _, testCase := range testCases {
		stmt := NewStatement(KindSelect, "alice").Append(named(testCase.initial...)...)
		record := stmt.insertAfter(testCase.at, named(testCase.insert...))
		assert.Equal(t, testCase.expect, sequence(stmt), testCase.description)

		stmt.removeRange(record)
		assert.Equal(t, testCase.initial, sequence(stmt), testCase.description)
	}
}

func TestStatement_IndexOf(t *testing.T) {
	refs := named("a", "b")
	stmt := NewStatement(KindSelect, "alice").Append(refs...)
	assert.Equal(t, 1, stmt.IndexOf(refs[1]))
	assert.Equal(t, -1, stmt.IndexOf(&TableRef{Name: "b"}))
}

func TestStatement_hasSubquery(t *testing.T) {
	stmt := NewStatement(KindSelect, "alice")
	owner := &TableRef{Schema: "db", Name: "v"}
	attached := &query.Select{}
	stmt.Subqueries = append(stmt.Subqueries, &Subquery{Select: attached, Owner: owner})
	require.True(t, stmt.hasSubquery(attached))
	assert.False(t, stmt.hasSubquery(&query.Select{}))
}
