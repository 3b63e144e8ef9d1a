package engine

import (
	"strings"

	"golang.org/x/text/cases"
)

// emptyMarkSentinel is the normalized form shared by every way a missing bar
// mark shows up in practice: null columns, empty strings, dashes and literal
// "null"/"na" placeholders imported from spreadsheets.
const emptyMarkSentinel = ""

var markFolder = cases.Fold()

// GroupKey identifies the pool of interchangeable packed bundles for a
// dispatch request: the normalized bar mark (rebar) or variant (precast) plus
// the shape or product code. Keep it a struct everywhere inside the engine;
// String is only for the storage and reporting boundary.
type GroupKey struct {
	Mark string
	Code string
}

// NewGroupKey normalizes mark and code into a GroupKey.
func NewGroupKey(mark *string, code string) GroupKey {
	m := ""
	if mark != nil {
		m = *mark
	}
	return GroupKey{Mark: NormalizeMark(m), Code: strings.ToUpper(strings.TrimSpace(code))}
}

// NormalizeMark case-folds and trims a raw bar mark, collapsing the known
// "no mark" spellings to the empty sentinel.
func NormalizeMark(mark string) string {
	folded := strings.ToUpper(markFolder.String(strings.TrimSpace(mark)))
	switch folded {
	case "", "-", "NA", "N/A", "NULL":
		return emptyMarkSentinel
	}
	return folded
}

// MarkEmpty reports whether the key's mark component is the empty sentinel.
func (k GroupKey) MarkEmpty() bool {
	return k.Mark == emptyMarkSentinel
}

// String serializes the key as mark-code for storage queries and line items.
func (k GroupKey) String() string {
	return k.Mark + "-" + k.Code
}

// Less orders keys deterministically (code first, then mark).
func (k GroupKey) Less(other GroupKey) bool {
	if k.Code != other.Code {
		return k.Code < other.Code
	}
	return k.Mark < other.Mark
}
