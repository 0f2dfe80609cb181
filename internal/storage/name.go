package storage

import (
	"fmt"
	"path"
	"strings"
)

// ValidateName accepts plain file names only: no directories, no hidden
// files and no traversal.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// BaseName reduces a client supplied upload name to its last path element
// and validates it. Both slash styles are treated as separators.
func BaseName(raw string) (string, error) {
	name := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	name = path.Base(name)
	if name == "/" {
		name = ""
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}
