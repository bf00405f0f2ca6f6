package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxNameRunes keeps generated names well under common file name limits.
const maxNameRunes = 120

var (
	// Characters rejected by Windows, macOS or Obsidian links.
	unsafeNameChars = regexp.MustCompile(`[\\/:*?"<>|#^\[\]\x00-\x1f]`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// SanitizeFileName makes name safe to use as a file name in the vault. The
// extension, if any, is preserved.
func SanitizeFileName(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 10 || strings.ContainsAny(ext, " ") {
		ext = ""
	}
	base := strings.TrimSuffix(name, ext)

	base = unsafeNameChars.ReplaceAllString(base, " ")
	base = strings.TrimSpace(spaceRun.ReplaceAllString(base, " "))
	base = strings.Trim(base, ". ")
	if utf8.RuneCountInString(base) > maxNameRunes {
		base = strings.TrimSpace(string([]rune(base)[:maxNameRunes]))
	}
	if base == "" {
		base = "meeting"
	}
	return base + unsafeNameChars.ReplaceAllString(ext, "")
}

// NoteFileName is "<date> <title>.md", or "<title>.md" when the date is
// unknown.
func NoteFileName(date, title string) string {
	name := strings.TrimSpace(title)
	if date != "" {
		name = date + " " + name
	}
	return SanitizeFileName(name) + ".md"
}

// uniquePath appends " (2)", " (3)"... before the extension until the path
// is neither on disk nor in reserved.
func uniquePath(path string, reserved map[string]string) string {
	free := func(p string) bool {
		if _, ok := reserved[p]; ok {
			return false
		}
		_, err := os.Stat(p)
		return os.IsNotExist(err)
	}
	if free(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if free(candidate) {
			return candidate
		}
	}
}
