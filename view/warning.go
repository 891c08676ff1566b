package view

// Warning is an advisory diagnostic surfaced to the caller without failing
// the statement.
type Warning struct {
	Code    string
	Message string
}

// Advisory warning codes.
const (
	WarnMergeDowngrade    = "VIEW_MERGE_DOWNGRADE"
	WarnViewWithoutKey    = "VIEW_WITHOUT_KEY"
	WarnDropMissingObject = "DROP_MISSING_OBJECT"
)
