package view

import (
	"github.com/pkg/errors"
)

// InsertFields expands a merged view into the insert column list of its
// base table. Every output column has to be updatable, otherwise the view
// can not be an insert target.
func InsertFields(translation Translation, alias string) ([]*Entry, error) {
	var result []*Entry
	for _, entry := range translation {
		if !entry.Updatable {
			return nil, errors.Errorf("the target view %v is not insertable-into: column %v is not updatable", alias, entry.Name)
		}
		result = append(result, entry)
	}
	return result, nil
}
