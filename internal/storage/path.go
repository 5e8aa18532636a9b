package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

const maxCacheSegment = 200

// BuildCachePath returns the relative location of a downloaded dataset file
// inside a download cache, e.g. datasets--owner--name/main/data/train.csv.
// File segments are percent-escaped, so any name other than "." or ".."
// maps to a single directory entry.
func BuildCachePath(datasetID, revision, file string) (string, error) {
	dir, err := DatasetCacheDir(datasetID)
	if err != nil {
		return "", err
	}
	if err := validatePathComponent(revision, "revision"); err != nil {
		return "", err
	}
	file = strings.Trim(file, "/")
	if file == "" {
		return "", fmt.Errorf("file path is required")
	}
	segments := strings.Split(file, "/")
	for i, segment := range segments {
		escaped, err := cacheSegment(segment)
		if err != nil {
			return "", err
		}
		segments[i] = escaped
	}
	return path.Join(dir, revision, path.Join(segments...)), nil
}

func cacheSegment(segment string) (string, error) {
	if segment == "" || segment == "." || segment == ".." {
		return "", fmt.Errorf("invalid file path segment: %q", segment)
	}
	escaped := url.PathEscape(segment)
	if len(escaped) <= maxCacheSegment {
		return escaped, nil
	}
	sum := sha256.Sum256([]byte(segment))
	return hex.EncodeToString(sum[:]) + path.Ext(escaped), nil
}

// DatasetCacheDir maps a dataset id to its cache directory name.
func DatasetCacheDir(datasetID string) (string, error) {
	datasetID = strings.Trim(strings.TrimSpace(datasetID), "/")
	if datasetID == "" {
		return "", fmt.Errorf("dataset id is required")
	}
	parts := strings.Split(datasetID, "/")
	for _, part := range parts {
		if err := validatePathComponent(part, "dataset id"); err != nil {
			return "", err
		}
	}
	return "datasets--" + strings.Join(parts, "--"), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) || strings.Contains(value, "..") {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
