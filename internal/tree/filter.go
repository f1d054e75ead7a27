package tree

import (
	"path"
	"sort"
	"strings"
)

// binaryExtensions are rejected during traversal, before any download
// happens.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".svg": {}, ".webp": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".bz2": {}, ".xz": {}, ".rar": {}, ".7z": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".o": {}, ".a": {}, ".class": {}, ".jar": {}, ".wasm": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wav": {}, ".flac": {},
	".db": {}, ".sqlite": {}, ".pyc": {},
	".lock": {}, ".log": {},
}

// textExtensions is the allow-list applied after download; only these paths
// go on to summarization.
var textExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".go": {}, ".rs": {}, ".rb": {},
	".java": {}, ".kt": {}, ".c": {}, ".h": {}, ".cpp": {}, ".hpp": {}, ".cc": {}, ".cs": {},
	".php": {}, ".swift": {}, ".scala": {}, ".lua": {}, ".pl": {}, ".r": {},
	".sh": {}, ".bash": {}, ".zsh": {}, ".ps1": {}, ".bat": {},
	".sql": {}, ".graphql": {}, ".proto": {},
	".html": {}, ".css": {}, ".scss": {}, ".less": {}, ".vue": {}, ".svelte": {},
	".md": {}, ".txt": {}, ".rst": {}, ".adoc": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {}, ".conf": {}, ".env": {}, ".xml": {},
	".tf": {}, ".dockerfile": {}, ".mod": {}, ".sum": {}, ".gradle": {}, ".cmake": {},
}

// IsBinaryPath reports whether the path's extension is on the binary
// deny-list; such tree entries are skipped without downloading.
func IsBinaryPath(p string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// IsTextPath reports whether the path's extension is on the summarizable
// allow-list.
func IsTextPath(p string) bool {
	_, ok := textExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// FilterText keeps the artifacts worth summarizing: allow-listed extension
// and non-blank content. Results are ordered by path so downstream batching
// is deterministic.
func FilterText(files map[string]FileArtifact) []FileArtifact {
	out := make([]FileArtifact, 0, len(files))
	for _, f := range files {
		if !IsTextPath(f.Path) {
			continue
		}
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
