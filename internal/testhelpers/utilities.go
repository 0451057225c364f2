package testhelpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ========================================
// Test File Utilities
// ========================================

// WriteTestFile creates a test file with the given content
func WriteTestFile(t *testing.T, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)

	// Create parent directories if needed
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent directories for %s: %v", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}

	return path
}

// ReadTestFile reads a test file's content
func ReadTestFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read test file %s: %v", path, err)
	}

	return string(data)
}

// AssertFileContains fails the test if the file does not contain the substring
func AssertFileContains(t *testing.T, path, substr, msg string) {
	t.Helper()

	content := ReadTestFile(t, path)
	if !strings.Contains(content, substr) {
		t.Errorf("%s: file %s does not contain %q", msg, path, substr)
	}
}

// ========================================
// Slice Helpers
// ========================================

// AssertSliceContains fails if elem is not in slice
func AssertSliceContains[T comparable](t *testing.T, slice []T, elem T, msg string) {
	t.Helper()

	for _, v := range slice {
		if v == elem {
			return
		}
	}
	t.Errorf("%s: slice %v does not contain %v", msg, slice, elem)
}
