// Package mapper implements the deterministic extent-key-to-path mapper: a
// pure function from (object_id, extent_tag?) to a POSIX-safe path, hashed
// and fanned out to keep any one directory level from growing without
// bound.
package mapper

import (
	"crypto/sha1" //nolint:gosec // fixed digest width for path fan-out, not a security boundary
	"fmt"
	"strings"
)

// MaxPathLen is the POSIX path-length budget allocated to a mapped path.
const MaxPathLen = 255

// clean replaces every byte outside [A-Za-z0-9._-] with '_'.
func clean(s string) string {
	b := []byte(s)
	for i, c := range b {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '.' || c == '_' || c == '-' {
			continue
		}
		b[i] = '_'
	}
	return string(b)
}

// Path computes the address for an object id and optional extent tag. It
// never errors: truncation always produces a path that fits MaxPathLen,
// even for pathological inputs.
func Path(objectID, extentTag string) string {
	sum := sha1.Sum([]byte(objectID + "\x00" + extentTag))
	h0, h1, h2, h3 := sum[0], sum[1], sum[2], sum[3]

	prefix := fmt.Sprintf("%02x/%02x/%02x%02x%02x%02x_", h0, h1, h0, h1, h2, h3)
	dirPart := prefix[:6] // "h0/h1/" — the two-level, two-byte-each fan-out
	namePart := prefix[6:]

	cleanID := clean(objectID)
	var suffix string
	if extentTag != "" {
		suffix = "." + clean(extentTag)
	}

	// Budget: the whole path — dirPart + namePart + id tail + suffix — must
	// fit within MaxPathLen. The tag suffix is cut first if it alone would
	// overflow, then the id tail takes whatever room is left.
	budget := MaxPathLen - len(dirPart)
	if len(namePart)+len(suffix) > budget {
		suffix = suffix[:budget-len(namePart)]
	}
	idBudget := budget - len(namePart) - len(suffix)
	if len(cleanID) > idBudget {
		cleanID = cleanID[:idBudget]
	}

	var sb strings.Builder
	sb.Grow(len(dirPart) + len(namePart) + len(cleanID) + len(suffix))
	sb.WriteString(dirPart)
	sb.WriteString(namePart)
	sb.WriteString(cleanID)
	sb.WriteString(suffix)
	return sb.String()
}
