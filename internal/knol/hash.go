// Package knol derives stable identities for imported notes.
package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
)

func normalizeField(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize joins the note's fields, each trimmed and lowercased with unix
// line endings, one per line. Edits that only touch case or surrounding
// whitespace keep the same normal form.
func Normalize(note domain.Note) string {
	return strings.Join([]string{
		normalizeField(note.Question),
		normalizeField(note.Answer),
		normalizeField(note.Context),
	}, "\n")
}

// Hash returns the hex SHA-256 of the note's normal form. A card imported
// from a source keeps its scheduling history for as long as its hash is
// unchanged.
func Hash(note domain.Note) string {
	sum := sha256.Sum256([]byte(Normalize(note)))
	return hex.EncodeToString(sum[:])
}
