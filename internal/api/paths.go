package api

import (
	"regexp"
	"strings"
)

const maxPathLength = 96

// Folder paths are slash-delimited word/space segments rooted at "/".
// File paths follow the same grammar but require a trailing extension.
var (
	folderPathPattern = regexp.MustCompile(`^(?:/(?:[\w\s]+/)*[\w\s]+|/)$`)
	filePathPattern   = regexp.MustCompile(`^/(?:[\w\s]+/)*[\w\s.-]+\.\w+$`)
)

// normalizePath trims surrounding whitespace from every segment and
// rejoins them. It never produces consecutive or trailing slashes from
// well-formed input; malformed input falls through to validation.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	joined := strings.Join(parts, "/")
	if joined == "" {
		return "/"
	}
	return joined
}

func validFolderPath(path string) bool {
	return len(path) <= maxPathLength && folderPathPattern.MatchString(path)
}

func validFilePath(path string) bool {
	return len(path) <= maxPathLength && filePathPattern.MatchString(path)
}

var unsafeFilenameChars = strings.NewReplacer(
	`\`, "", `/`, "", `:`, "", `*`, "", `?`, "", `"`, "", `<`, "", `>`, "", `|`, "",
)

// sanitizeFilename strips path-unsafe characters from an uploaded
// filename before it is joined onto the destination folder path.
func sanitizeFilename(name string) string {
	return strings.TrimSpace(unsafeFilenameChars.Replace(name))
}

// joinFilePath builds a file's full path from its folder and filename.
func joinFilePath(folderPath, filename string) string {
	return strings.TrimRight(folderPath, "/") + "/" + filename
}

// wildcardPath rebuilds the leading-slash path carried by a chi "/*"
// route parameter. An empty wildcard addresses the root folder.
func wildcardPath(wildcard string) string {
	return normalizePath("/" + strings.Trim(wildcard, "/"))
}
