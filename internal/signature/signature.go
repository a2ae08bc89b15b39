// Package signature locates static addresses in a foreign module image
// using byte patterns with wildcards.
package signature

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/retroenv/procmirror/internal/memory"
)

// displacementSize is the size of the relative displacement embedded in
// the matched instruction.
const displacementSize = 4

const (
	wildcard   = "??"
	skipMarker = "^"
)

var (
	// ErrNotFound is returned when a signature does not match the image.
	ErrNotFound = errors.New("signature not found")
	// ErrInvalidPattern is returned for malformed pattern strings.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Signature is a named byte pattern. Mask entries set to false are wildcards.
// Skip is the offset of the embedded relative displacement, relative to the
// start of a match.
type Signature struct {
	Name    string
	Pattern []byte
	Mask    []bool
	Skip    int
}

// Parse parses a pattern of space separated hex bytes where ?? marks a
// wildcard byte. A ^ token marks the skip position and overrides the skip
// argument.
func Parse(name, pattern string, skip int) (Signature, error) {
	sig := Signature{
		Name: name,
		Skip: skip,
	}

	markerSeen := false
	for _, token := range strings.Fields(pattern) {
		switch token {
		case skipMarker:
			if markerSeen {
				return Signature{}, fmt.Errorf("%s: duplicate skip marker: %w", name, ErrInvalidPattern)
			}
			markerSeen = true
			sig.Skip = len(sig.Pattern)

		case wildcard, "?":
			sig.Pattern = append(sig.Pattern, 0)
			sig.Mask = append(sig.Mask, false)

		default:
			b, err := strconv.ParseUint(token, 16, 8)
			if err != nil {
				return Signature{}, fmt.Errorf("%s: token '%s': %w", name, token, ErrInvalidPattern)
			}
			sig.Pattern = append(sig.Pattern, byte(b))
			sig.Mask = append(sig.Mask, true)
		}
	}

	if len(sig.Pattern) == 0 {
		return Signature{}, fmt.Errorf("%s: empty pattern: %w", name, ErrInvalidPattern)
	}
	if sig.Skip < 0 {
		return Signature{}, fmt.Errorf("%s: negative skip %d: %w", name, sig.Skip, ErrInvalidPattern)
	}
	return sig, nil
}

// String returns the pattern in its textual notation.
func (s Signature) String() string {
	tokens := make([]string, 0, len(s.Pattern))
	for i, b := range s.Pattern {
		if s.Mask[i] {
			tokens = append(tokens, fmt.Sprintf("%02X", b))
		} else {
			tokens = append(tokens, wildcard)
		}
	}
	return strings.Join(tokens, " ")
}

// Match returns whether the signature matches the data at the given offset.
func (s Signature) Match(data []byte, offset int) bool {
	if offset < 0 || offset+len(s.Pattern) > len(data) {
		return false
	}
	for i, b := range s.Pattern {
		if s.Mask[i] && data[offset+i] != b {
			return false
		}
	}
	return true
}

// Scan returns the offset of the first match of the signature in the image.
func Scan(image []byte, sig Signature) (int, bool) {
	last := len(image) - len(sig.Pattern)
	for offset := 0; offset <= last; offset++ {
		if sig.Match(image, offset) {
			return offset, true
		}
	}
	return 0, false
}

// Resolve finds the signature in the image that is loaded at base and
// resolves the embedded relative displacement into the absolute static
// address: match + skip + 4 + displacement.
func Resolve(image []byte, base memory.Address, sig Signature) (memory.Address, error) {
	offset, ok := Scan(image, sig)
	if !ok {
		return 0, fmt.Errorf("%s: %w", sig.Name, ErrNotFound)
	}

	at := offset + sig.Skip
	if at+displacementSize > len(image) {
		return 0, fmt.Errorf("%s: displacement at offset 0x%X outside image", sig.Name, at)
	}
	displacement := int32(binary.LittleEndian.Uint32(image[at:]))

	match := base + memory.Address(offset)
	return match.Offset(int64(sig.Skip) + displacementSize + int64(displacement)), nil
}
