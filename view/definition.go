package view

import (
	"time"
)

// FileVersion is the current persisted record format version.
const FileVersion = 1

// FirstRevision is the revision written on the very first registration of a
// name; a registration carrying it suppresses the cache invalidation signal.
const FirstRevision = uint64(1)

// Definition is the persisted payload of a view, field for field the content
// of its catalog record.
type Definition struct {
	Query       string
	MD5         string
	Updatable   bool
	Algorithm   Algorithm
	CheckOption CheckOption
	Revision    uint64
	Timestamp   time.Time
	FileVersion int
	Source      string
}

// Clone returns a copy; definitions never share mutable state across
// statement re-executions.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	result := *d
	return &result
}
