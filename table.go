package tablecache

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var identSegmentRE = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// resolveTable maps a prefix and ordered salt values to the physical table
// name: the bare prefix with no salt, else prefix_{salt1}_{salt2}_... with
// each value rendered identifier-safe. Pure and deterministic; table
// existence is the reader's and writer's concern, never the resolver's.
func resolveTable(prefix string, salts []Value) string {
	if len(salts) == 0 {
		return prefix
	}
	parts := make([]string, 0, len(salts)+1)
	parts = append(parts, prefix)
	for _, s := range salts {
		parts = append(parts, saltToken(s))
	}
	return strings.Join(parts, "_")
}

// saltToken renders one salt value as an identifier segment. The underscore
// is reserved as the tuple separator, so only purely alphanumeric renderings
// pass through unchanged; anything else is mapped onto the safe alphabet and
// suffixed with a short digest of the original rendering, which keeps
// distinct salt tuples from colliding after the join.
func saltToken(v Value) string {
	raw := v.format()
	if identSegmentRE.MatchString(raw) {
		return raw
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	sum := sha256.Sum256([]byte(raw))
	token := strings.Trim(b.String(), "_")
	if token == "" {
		return hex.EncodeToString(sum[:4])
	}
	return token + "_" + hex.EncodeToString(sum[:4])
}

// validIdent reports whether name is usable as a storage identifier.
func validIdent(name string) bool {
	return identRE.MatchString(name)
}
