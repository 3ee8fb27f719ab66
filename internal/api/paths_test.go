package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	require.Equal(t, "/", normalizePath("/"))
	require.Equal(t, "/", normalizePath(""))
	require.Equal(t, "/documents/reports", normalizePath("/documents / reports"))
	require.Equal(t, "/a/b", normalizePath("/ a / b "))
	require.Equal(t, "/my folder", normalizePath("/my folder"))
}

func TestValidFolderPath(t *testing.T) {
	valid := []string{"/", "/documents", "/documents/reports", "/my folder/sub"}
	for _, p := range valid {
		require.True(t, validFolderPath(p), "expected %q to be valid", p)
	}

	invalid := []string{
		"",
		"documents",
		"/documents/",
		"//",
		"/a//b",
		"/docs/re:port",
		"/" + strings.Repeat("a", maxPathLength),
	}
	for _, p := range invalid {
		require.False(t, validFolderPath(p), "expected %q to be invalid", p)
	}
}

func TestValidFilePath(t *testing.T) {
	valid := []string{"/doc.txt", "/a/b/report v2.txt", "/archive.tar.gz", "/my-file.pdf"}
	for _, p := range valid {
		require.True(t, validFilePath(p), "expected %q to be valid", p)
	}

	invalid := []string{"/", "/noextension", "/folder/", "doc.txt", "/docs/bad|name.txt"}
	for _, p := range invalid {
		require.False(t, validFilePath(p), "expected %q to be invalid", p)
	}
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "report.txt", sanitizeFilename(`re:port*.txt`))
	require.Equal(t, "abc.txt", sanitizeFilename(`a/b\c.txt`))
	require.Equal(t, "file .txt", sanitizeFilename("  file .txt  "))
	require.Equal(t, "", sanitizeFilename(`<>:"/\|?*`))
}

func TestJoinFilePath(t *testing.T) {
	require.Equal(t, "/a.txt", joinFilePath("/", "a.txt"))
	require.Equal(t, "/docs/a.txt", joinFilePath("/docs", "a.txt"))
}

func TestWildcardPath(t *testing.T) {
	require.Equal(t, "/", wildcardPath(""))
	require.Equal(t, "/docs/reports", wildcardPath("docs/reports"))
	require.Equal(t, "/docs", wildcardPath("docs/"))
}
