package resolve

import (
	"github.com/viant/viewly/table"
	"github.com/viant/viewly/verror"
	"github.com/viant/viewly/view"
)

// Tolerance decides how a limited update through a view without a usable
// key is treated. It is an explicit setting; the zero value is strict.
type Tolerance int

const (
	//ToleranceStrict fails the statement.
	ToleranceStrict Tolerance = iota
	//TolerancePermissive allows the update with an advisory warning.
	TolerancePermissive
)

// KeyCheckResult is the outcome of updatable key analysis.
type KeyCheckResult int

const (
	//KeyCheckNotApplicable means the reference or statement shape does not
	//require the check.
	KeyCheckNotApplicable KeyCheckResult = iota
	//KeyCheckUsableKey means a unique not-null key is fully exposed.
	KeyCheckUsableKey
	//KeyCheckAllColumns means every base column is exposed updatable.
	KeyCheckAllColumns
	//KeyCheckPermitted means no key nor full coverage exists but permissive
	//tolerance admitted the update.
	KeyCheckPermitted
)

// CheckKey analyzes whether a row limited update or delete through a view is
// safely bounded: some unique not-null key of the underlying table - or the
// whole column set - must map to updatable output columns of the view.
func CheckKey(stmt *Statement, ref *TableRef, tolerance Tolerance) (KeyCheckResult, *view.Warning, error) {
	if (!ref.IsView() && ref.BelongsTo == nil) || stmt.Kind == KindInsert || !stmt.HasLimit {
		return KeyCheckNotApplicable, nil, nil
	}
	base := baseTable(ref)
	top := ref.TopView()
	translation := top.Translation
	if base == nil || len(translation) == 0 {
		return KeyCheckNotApplicable, nil, nil
	}
	for _, key := range base.UniqueNotNullKeys() {
		if coversKey(translation, key) {
			return KeyCheckUsableKey, nil, nil
		}
	}
	if coversAllColumns(translation, base) {
		return KeyCheckAllColumns, nil, nil
	}
	if tolerance == TolerancePermissive {
		warning := &view.Warning{
			Code:    view.WarnViewWithoutKey,
			Message: "view does not expose a usable key; limited update order is not deterministic",
		}
		return KeyCheckPermitted, warning, nil
	}
	return KeyCheckNotApplicable, nil, verror.New(verror.KindViewWithoutUsableKey, top.Schema, top.Name)
}

func baseTable(ref *TableRef) *table.Table {
	if ref.Table != nil {
		return ref.Table
	}
	top := ref.TopView()
	if len(top.ViewTables) == 1 {
		return top.ViewTables[0].Table
	}
	return nil
}

func coversKey(translation view.Translation, key *table.Key) bool {
	for _, part := range key.Parts {
		if !translation.Covers(part) {
			return false
		}
	}
	return len(key.Parts) > 0
}

func coversAllColumns(translation view.Translation, base *table.Table) bool {
	for _, column := range base.Columns {
		if !translation.Covers(column.Name) {
			return false
		}
	}
	return len(base.Columns) > 0
}
