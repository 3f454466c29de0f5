package bundler

import (
	"regexp"
	"strconv"
	"strings"

	"modfed/internal/diag"
)

var (
	// "✘ [ERROR] Could not resolve \"leftpad\"" / "▲ [WARNING] ..."
	logHeadRe = regexp.MustCompile(`^[^\[]*\[(ERROR|WARNING)\]\s+(.+)$`)
	// "    src/index.js:3:17:"
	logLocRe = regexp.MustCompile(`^\s+([^\s][^:]*):(\d+):(\d+):?\s*$`)
)

// parseLog folds esbuild's text log output into diagnostics. Each message
// starts with a severity-tagged head line; the first indented
// file:line:col line after it becomes the location. Unrecognized lines
// (source excerpts, carets) are skipped.
func parseLog(output string, bag *diag.Bag) {
	var current *diag.Diagnostic
	flush := func() {
		if current != nil {
			bag.Add(*current)
			current = nil
		}
	}

	for _, line := range strings.Split(output, "\n") {
		if m := logHeadRe.FindStringSubmatch(line); m != nil {
			flush()
			sev := diag.SevError
			code := diag.BndBundlerMessage
			if m[1] == "WARNING" {
				sev = diag.SevWarning
				code = diag.BndBundlerWarning
			}
			d := diag.New(sev, code, diag.Loc{}, strings.TrimSpace(m[2]))
			current = &d
			continue
		}
		if current == nil || !current.Primary.IsZero() {
			continue
		}
		if m := logLocRe.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			colNo, _ := strconv.Atoi(m[3])
			current.Primary = diag.Loc{File: strings.TrimSpace(m[1]), Line: lineNo, Col: colNo}
		}
	}
	flush()
}
