package compare

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/awendland/transcepta-anyinvoice-v2/internal/invoice"
)

// ContextLines is how many unchanged lines surround each change.
const ContextLines = 10

// Default labels of the two sides of a diff.
const (
	ExpectedLabel = "expected"
	ActualLabel   = "actual"
)

// LineKind tags one line of a unified diff.
type LineKind int

const (
	FileHeader LineKind = iota
	Hunk
	ContextLine
	Addition
	Deletion
)

func (k LineKind) String() string {
	switch k {
	case FileHeader:
		return "file_header"
	case Hunk:
		return "hunk"
	case ContextLine:
		return "context"
	case Addition:
		return "addition"
	case Deletion:
		return "deletion"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

func (k LineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DiffLine is one tagged line of a unified diff, prefix included.
type DiffLine struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// Diff compares the canonical forms of expected and actual. Identical
// invoices yield no lines. A mismatch is not an error; only failing to
// canonicalize either side is.
func Diff(expected, actual invoice.Extracted) ([]DiffLine, error) {
	text, err := DiffText(expected, actual, ExpectedLabel, ActualLabel)
	if err != nil {
		return nil, err
	}
	return ParseUnified(text), nil
}

// DiffText returns the unified diff of the canonical forms as text, with
// the given file labels.
func DiffText(expected, actual invoice.Extracted, fromLabel, toLabel string) (string, error) {
	a, err := Canonicalize(expected)
	if err != nil {
		return "", fmt.Errorf("canonicalizing expected: %w", err)
	}
	b, err := Canonicalize(actual)
	if err != nil {
		return "", fmt.Errorf("canonicalizing actual: %w", err)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  ContextLines,
	})
	if err != nil {
		return "", fmt.Errorf("diffing: %w", err)
	}
	return text, nil
}

// ParseUnified tags the lines of unified diff text.
func ParseUnified(text string) []DiffLine {
	if text == "" {
		return nil
	}

	raw := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	lines := make([]DiffLine, 0, len(raw))
	inHunk := false
	for _, l := range raw {
		kind := ContextLine
		switch {
		case strings.HasPrefix(l, "@@"):
			kind = Hunk
			inHunk = true
		case !inHunk && (strings.HasPrefix(l, "---") || strings.HasPrefix(l, "+++")):
			kind = FileHeader
		case strings.HasPrefix(l, "+"):
			kind = Addition
		case strings.HasPrefix(l, "-"):
			kind = Deletion
		}
		lines = append(lines, DiffLine{Kind: kind, Text: l})
	}
	return lines
}

// Stats counts added and deleted lines.
func Stats(lines []DiffLine) (added, deleted int) {
	for _, l := range lines {
		switch l.Kind {
		case Addition:
			added++
		case Deletion:
			deleted++
		}
	}
	return added, deleted
}

// Identical reports whether a diff has no changes.
func Identical(lines []DiffLine) bool {
	added, deleted := Stats(lines)
	return added == 0 && deleted == 0
}
