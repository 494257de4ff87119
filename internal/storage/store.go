// Package storage keeps uploaded profile pictures. The account service only sees
// the reference string a store returns.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

type UploadStore interface {
	// Save stores r under a name derived from suggestedName and returns the public reference.
	Save(ctx context.Context, r io.Reader, suggestedName string) (string, error)
	// Remove deletes a previously saved reference. Missing objects are not an error.
	Remove(ctx context.Context, ref string) error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredName builds "<unix seconds>_<base name>" with path elements and odd
// characters stripped from the original name.
func StoredName(now time.Time, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	return fmt.Sprintf("%d_%s", now.Unix(), base)
}
