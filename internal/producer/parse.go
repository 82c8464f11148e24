package producer

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// issuePattern matches `path:line:col: CODE message`; the column is optional.
var issuePattern = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)?\s+([A-Za-z][A-Za-z0-9_-]*)\s+(.*)$`)

// Issue is one diagnostic parsed from linter output.
type Issue struct {
	Path    string
	Line    int
	Column  int
	Code    string
	Message string
}

// ParseLine parses a single output line. ok is false for lines that are not
// diagnostics.
func ParseLine(line string) (Issue, bool) {
	line = strings.TrimRight(line, "\r\n")
	m := issuePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Issue{}, false
	}
	lineNo, err := strconv.Atoi(m[2])
	if err != nil {
		return Issue{}, false
	}
	col := 0
	if m[3] != "" {
		if col, err = strconv.Atoi(m[3]); err != nil {
			return Issue{}, false
		}
	}
	return Issue{
		Path:    cleanPath(m[1]),
		Line:    lineNo,
		Column:  col,
		Code:    strings.ToUpper(m[4]),
		Message: strings.TrimSpace(m[5]),
	}, true
}

// Parse reads every diagnostic from r. ignored counts non-empty lines that
// were not diagnostics.
func Parse(r io.Reader) (issues []Issue, ignored int, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		issue, ok := ParseLine(text)
		if !ok {
			ignored++
			continue
		}
		issues = append(issues, issue)
	}
	if err := scanner.Err(); err != nil {
		return issues, ignored, fmt.Errorf("read linter output: %w", err)
	}
	return issues, ignored, nil
}

func cleanPath(path string) string {
	path = filepath.ToSlash(filepath.Clean(strings.TrimSpace(path)))
	return strings.TrimPrefix(path, "./")
}

// severityFor follows the pycodestyle/pyflakes letter convention.
func severityFor(code string) string {
	switch {
	case strings.HasPrefix(code, "E"), strings.HasPrefix(code, "F"):
		return "error"
	case strings.HasPrefix(code, "W"):
		return "warning"
	default:
		return "info"
	}
}
