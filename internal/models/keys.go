package models

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

const hexDigits = "0123456789ABCDEF"

// folderKeyPrefix contains a space, which KeyCodec.Encode always escapes, so folder keys
// and session keys can never collide.
const folderKeyPrefix = "[folder] "

// KeyCodec converts free-text display names to store-safe keys and back. The encoding
// matches the one PuTTY uses for its registry keys, extended to escape every byte of
// the folder path separator.
type KeyCodec struct {
	Separator string
}

func (c KeyCodec) mustEscape(b byte, first bool) bool {
	switch {
	case b == ' ', b == '\\', b == '*', b == '?', b == '%':
		return true
	case b < ' ', b > '~':
		return true
	case b == '.' && first:
		return true
	}
	return strings.IndexByte(c.Separator, b) >= 0
}

// Encode escapes a display name into a store key.
func (c KeyCodec) Encode(display string) string {
	var sb strings.Builder
	sb.Grow(len(display))
	for i := 0; i < len(display); i++ {
		b := display[i]
		if c.mustEscape(b, i == 0) {
			sb.WriteByte('%')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0f])
			continue
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

// Decode reverses Encode. Malformed escapes are kept as-is.
func (c KeyCodec) Decode(key string) string {
	if strings.IndexByte(key, '%') < 0 {
		return key
	}
	var sb strings.Builder
	sb.Grow(len(key))
	for i := 0; i < len(key); i++ {
		b := key[i]
		if b == '%' && i+2 < len(key) {
			hi, ok1 := unhex(key[i+1])
			lo, ok2 := unhex(key[i+2])
			if ok1 && ok2 {
				sb.WriteByte(hi<<4 | lo)
				i += 2
				continue
			}
		}
		sb.WriteByte(b)
	}
	return sb.String()
}

func unhex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// FolderKey derives the tree key of a folder from its full path.
func FolderKey(path string) string {
	return folderKeyPrefix + path
}

// IsFolderKey reports whether key was produced by FolderKey.
func IsFolderKey(key string) bool {
	return strings.HasPrefix(key, folderKeyPrefix)
}

// SortKey is the case-folded display text entries are ordered by. A Caser is
// not safe for concurrent use, so each call builds its own; callers that sort
// repeatedly should keep the result.
func SortKey(e Entry) string {
	return cases.Fold().String(e.Display())
}

// Compare orders entries by SortKey, then by key.
func Compare(a, b Entry) int {
	return CompareFolded(SortKey(a), a.Key(), SortKey(b), b.Key())
}

// CompareFolded is Compare over precomputed sort keys.
func CompareFolded(foldA, keyA, foldB, keyB string) int {
	if c := strings.Compare(foldA, foldB); c != 0 {
		return c
	}
	return strings.Compare(keyA, keyB)
}

// ValidateFolderName rejects empty folder names and names containing the separator.
func ValidateFolderName(name, sep string) error {
	if name == "" {
		return fmt.Errorf("%w: folder name must be supplied", ErrInvalidName)
	}
	if sep != "" && strings.Contains(name, sep) {
		return fmt.Errorf("%w: %q may not be used in folder name %q", ErrInvalidName, sep, name)
	}
	return nil
}

// ValidateSessionName rejects empty names and the reserved default session name.
func ValidateSessionName(name, defaultName string) error {
	if name == "" {
		return fmt.Errorf("%w: session name must be supplied", ErrInvalidName)
	}
	if defaultName != "" && strings.EqualFold(name, defaultName) {
		return fmt.Errorf("%w: %q is reserved for the default session", ErrInvalidName, name)
	}
	return nil
}
