// Package objectkey maps local media files to remote object keys.
package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
)

// NormalizePrefix makes a non-empty folder prefix end with exactly one "/".
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// Resolve returns the object key for filePath relative to baseDir.
// The relative path is computed by string prefix, not by resolving the
// filesystem, so symlinks and ".." are not canonicalised.
func Resolve(baseDir, filePath, prefix string) (string, error) {
	rel, err := Relative(baseDir, filePath)
	if err != nil {
		return "", err
	}
	return Join(prefix, rel), nil
}

// Relative strips baseDir from filePath.
func Relative(baseDir, filePath string) (string, error) {
	if strings.TrimSpace(baseDir) == "" {
		return "", fmt.Errorf("%w: base directory is empty", domain.ErrOutsideBaseDir)
	}
	base := strings.TrimSuffix(toSlash(baseDir), "/") + "/"
	p := toSlash(filePath)
	if !strings.HasPrefix(p, base) {
		return "", fmt.Errorf("%w: %s not under %s", domain.ErrOutsideBaseDir, filePath, baseDir)
	}
	rel := strings.TrimPrefix(p, base)
	if rel == "" {
		return "", fmt.Errorf("%w: %s is the base directory", domain.ErrOutsideBaseDir, filePath)
	}
	return rel, nil
}

// Join prepends the normalized prefix to a relative path.
func Join(prefix, rel string) string {
	return NormalizePrefix(prefix) + strings.TrimLeft(toSlash(rel), "/")
}

// Variant derives a sibling key by substituting the basename of key.
func Variant(key, filename string) string {
	dir := path.Dir(key)
	if dir == "." {
		return filename
	}
	return dir + "/" + filename
}

// PublicURL builds the public URL for key under baseURL/bucket.
func PublicURL(baseURL, bucket, key string) string {
	return strings.TrimSuffix(baseURL, "/") + "/" + bucket + "/" + key
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
