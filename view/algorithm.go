package view

import (
	"fmt"
	"strings"
)

// Algorithm is a view algorithm declared with CREATE VIEW; the effective
// algorithm is settled at resolution time.
type Algorithm int

const (
	AlgorithmUndefined Algorithm = iota
	AlgorithmMerge
	AlgorithmMaterialize
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmMerge:
		return "merge"
	case AlgorithmMaterialize:
		return "materialize"
	}
	return "undefined"
}

// ParseAlgorithm converts a persisted algorithm token.
func ParseAlgorithm(text string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "undefined", "0":
		return AlgorithmUndefined, nil
	case "merge", "1":
		return AlgorithmMerge, nil
	case "materialize", "tmptable", "2":
		return AlgorithmMaterialize, nil
	}
	return AlgorithmUndefined, fmt.Errorf("unknown algorithm: %q", text)
}

// CheckOption is a WITH CHECK OPTION mode.
type CheckOption int

const (
	CheckNone CheckOption = iota
	CheckLocal
	CheckCascaded
)

func (c CheckOption) String() string {
	switch c {
	case CheckLocal:
		return "local"
	case CheckCascaded:
		return "cascaded"
	}
	return "none"
}

// ParseCheckOption converts a persisted check option token.
func ParseCheckOption(text string) (CheckOption, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "none", "0":
		return CheckNone, nil
	case "local", "1":
		return CheckLocal, nil
	case "cascaded", "2":
		return CheckCascaded, nil
	}
	return CheckNone, fmt.Errorf("unknown check option: %q", text)
}
