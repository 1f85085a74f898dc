// Package source discovers, decodes, and normalizes Claude Code JSONL
// usage-log files.
package source

import (
	"os"
	"path/filepath"
	"strings"
)

// DiscoveredFile represents a JSONL log file found during directory scanning.
type DiscoveredFile struct {
	Path        string
	ProjectDir  string // raw hyphen-encoded directory name
	ProjectPath string // decoded filesystem-style project path
	SessionID   string // extracted from filename
}

// ScanDir walks the log directory's projects tree and discovers all JSONL
// session files. A missing projects directory yields an empty result, not
// an error.
func ScanDir(logDir string) ([]DiscoveredFile, error) {
	projectsDir := filepath.Join(logDir, "projects")

	info, err := os.Stat(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(projectsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}

		rel, _ := filepath.Rel(projectsDir, path)
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 2 {
			return nil
		}

		projectDir := parts[0]
		files = append(files, DiscoveredFile{
			Path:        path,
			ProjectDir:  projectDir,
			ProjectPath: DecodeProjectPath(projectDir),
			SessionID:   strings.TrimSuffix(d.Name(), ".jsonl"),
		})
		return nil
	})

	return files, err
}

// Known parent directory names that commonly precede the project name in
// encoded paths.
var knownParents = map[string]bool{
	"projects": true, "repos": true, "src": true,
	"code": true, "workspace": true, "dev": true,
}

// DecodeProjectPath reconstructs a filesystem-style path from the encoded
// directory name. Claude Code encodes absolute paths by replacing "/" with
// "-", so:
//
//	"-Users-alice-projects-gitlore"      -> "/Users/alice/projects/gitlore"
//	"-Users-alice-projects-my-cool-tool" -> "/Users/alice/projects/my-cool-tool"
//
// Hyphens inside the project name itself are ambiguous; we scan for the last
// known parent marker ("projects", "repos", ...) and treat everything after
// it as a single hyphenated name. Without a marker every segment becomes a
// path component.
func DecodeProjectPath(dirName string) string {
	parts := strings.Split(dirName, "-")

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			name := strings.Join(parts[i+1:], "-")
			if name != "" {
				return "/" + strings.Join(append(nonEmpty(parts[:i+1]), name), "/")
			}
		}
	}

	segments := nonEmpty(parts)
	if len(segments) == 0 {
		return ""
	}
	return "/" + strings.Join(segments, "/")
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CountProjects returns the number of unique projects in a set of
// discovered files.
func CountProjects(files []DiscoveredFile) int {
	seen := make(map[string]struct{})
	for _, f := range files {
		seen[f.ProjectDir] = struct{}{}
	}
	return len(seen)
}
