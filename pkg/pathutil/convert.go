// Package pathutil provides utilities for converting between absolute and relative paths.
//
// Architecture Pattern:
// quer uses absolute paths internally for consistency and to avoid ambiguity.
// However, user-facing output should use relative paths for readability and portability.
// This package provides the conversion layer between internal (absolute) and external (relative) representations.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/quersearch/quer/internal/searchtypes"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/home/user/dumps/rom/boot.bin", "/home/user/dumps") → "rom/boot.bin"
//   - ToRelative("/other/location/file.bin", "/home/user/dumps") → "/other/location/file.bin" (outside root)
//   - ToRelative("rom/boot.bin", "/home/user/dumps") → "rom/boot.bin" (already relative)
func ToRelative(absPath, rootDir string) string {
	// Handle empty inputs
	if absPath == "" || rootDir == "" {
		return absPath
	}

	// If path is already relative, return as-is
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	// Clean both paths to normalize separators and remove redundant elements
	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	// Try to make relative
	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		// Conversion failed (e.g., different drives on Windows) - return absolute
		return absPath
	}

	// If the relative path starts with ".." it means the file is outside the root
	// In this case, return the absolute path as it's clearer
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}

	return relPath
}

// ToRelativeMatches converts paths in a MatchRecord slice from absolute to relative.
// Creates a new slice without modifying the original records.
//
// This function is designed for use at output boundaries where results are displayed to users:
//   - CLI result tables
//   - JSON serialization
//   - MCP server responses
func ToRelativeMatches(matches []searchtypes.MatchRecord, rootDir string) []searchtypes.MatchRecord {
	if len(matches) == 0 {
		return matches
	}

	// Create a copy to avoid modifying the original
	converted := make([]searchtypes.MatchRecord, len(matches))
	copy(converted, matches)

	// Convert paths
	for i := range converted {
		converted[i].Path = ToRelative(converted[i].Path, rootDir)
	}

	return converted
}
