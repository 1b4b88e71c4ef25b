package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// itemIDRegex matches identifiers produced by the counter and UUID generators
// as well as caller-chosen slugs.
var itemIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateItemID validates an item identifier received from outside the
// process (HTTP path parameters, documents).
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - Maximum length of 128 characters
//   - No control characters
//   - Only letters, digits, '.', '_' and '-', starting with a letter or digit
func ValidateItemID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "item id cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "item id too long (max 128 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "item id contains invalid control characters")
		}
	}

	if !itemIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid item id: %q", id)
	}

	return nil
}

// ValidatePath validates a layout or configuration file path given on the
// command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..) after cleaning
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if !filepath.IsAbs(path) && (clean == ".." || strings.HasPrefix(clean, "../")) {
		return New(ErrCodeInvalidPath, "path cannot escape the working directory: %q", path)
	}

	return nil
}

// ValidateExtension checks that path ends in one of the allowed extensions
// (compared case-insensitively, including the leading dot).
func ValidateExtension(path string, allowed ...string) error {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return New(ErrCodeInvalidFormat, "unsupported file extension %q (want one of %s)", ext, strings.Join(allowed, ", "))
}
