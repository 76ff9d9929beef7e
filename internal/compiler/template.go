package compiler

import (
	"fmt"
	"strings"

	"github.com/ataft/lightdash/internal/ir"
)

// Segment is one piece of a parsed SQL template: either literal text or a
// ${...} placeholder.
type Segment struct {
	// Text is the literal text, or the raw reference for a placeholder.
	Text string
	// IsRef marks a placeholder segment.
	IsRef bool
	// Offset is the byte offset of the segment in the template.
	Offset int
}

// ParseTemplate splits a template into literal and placeholder segments in
// a single left-to-right pass.
//
// A placeholder is "${", one or more of [A-Za-z0-9_.], then "}". Anything
// else, including an unclosed "${" or "${}" or "${a b}", is literal text.
// Concatenating the Text of literal segments with "${"+Text+"}" of
// placeholders reproduces the template exactly.
func ParseTemplate(template string) []Segment {
	var segs []Segment
	litStart := 0
	i := 0
	for i < len(template) {
		if template[i] != '$' || i+1 >= len(template) || template[i+1] != '{' {
			i++
			continue
		}
		end := i + 2
		for end < len(template) && isRefByte(template[end]) {
			end++
		}
		if end == i+2 || end >= len(template) || template[end] != '}' {
			i++
			continue
		}
		if litStart < i {
			segs = append(segs, Segment{Text: template[litStart:i], Offset: litStart})
		}
		segs = append(segs, Segment{Text: template[i+2 : end], IsRef: true, Offset: i})
		i = end + 1
		litStart = i
	}
	if litStart < len(template) {
		segs = append(segs, Segment{Text: template[litStart:], Offset: litStart})
	}
	return segs
}

func isRefByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '.'
}

// ResolveReference converts a "table.field" reference to its field id.
// It does not check that the field exists.
func ResolveReference(ref string) (ir.FieldID, error) {
	table, field, ok := strings.Cut(ref, ".")
	if !ok || table == "" || field == "" || strings.Contains(field, ".") {
		return "", &CompileError{
			Kind: KindMalformedReference,
			Message: fmt.Sprintf(
				"invalid reference: %s. References must be of the format \"table.field\"", ref),
			Ref: ref,
		}
	}
	return ir.FieldIDFor(table, field), nil
}
