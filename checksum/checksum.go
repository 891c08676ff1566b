// Package checksum audits the integrity digest persisted with every view
// definition, as exercised by CHECK TABLE.
package checksum

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/viant/viewly/view"
)

// Width is the canonical hex width of a definition digest.
const Width = 32

// VerifyResult is the outcome of a definition integrity audit.
type VerifyResult int

const (
	//Ok means the digest matches the canonical query text.
	Ok VerifyResult = iota
	//NotImplemented means the record carries no comparable digest; legacy or
	//externally edited records must not spuriously fail the audit.
	NotImplemented
	//Mismatch means the stored text no longer matches its digest.
	Mismatch
)

func (r VerifyResult) String() string {
	switch r {
	case Ok:
		return "ok"
	case Mismatch:
		return "mismatch"
	}
	return "not implemented"
}

// Compute returns the digest of the canonical query text.
func Compute(queryText string) string {
	digest := md5.Sum([]byte(queryText))
	return hex.EncodeToString(digest[:])
}

// Verify audits a loaded definition against its recorded digest.
func Verify(definition *view.Definition) VerifyResult {
	if definition == nil || len(definition.MD5) != Width {
		return NotImplemented
	}
	if Compute(definition.Query) != definition.MD5 {
		return Mismatch
	}
	return Ok
}
