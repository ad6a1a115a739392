package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"axe/internal/provider"
	"axe/internal/store"
)

var fileRefPattern = regexp.MustCompile(`@([\w./~-]+)`)

// referencedFiles extracts `@path` mentions from input and keeps the
// ones that exist under workDir. Paths come back as written by the
// user.
func referencedFiles(workDir, input string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range fileRefPattern.FindAllStringSubmatch(input, -1) {
		path := strings.TrimRight(m[1], ".")
		if path == "" || seen[path] {
			continue
		}
		candidate := path
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(workDir, candidate)
		}
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// annotateInput appends an advisory note listing referenced files to
// the text sent to the model. The stored user message keeps the
// original text.
func annotateInput(workDir, input string) string {
	refs := referencedFiles(workDir, input)
	if len(refs) == 0 {
		return input
	}
	return fmt.Sprintf("%s\n\n[The user referenced these files: %s. Read them with your tools if their contents matter.]",
		input, strings.Join(refs, ", "))
}

// historyMessages converts the trailing session window into model
// messages, oldest first.
func historyMessages(msgs []store.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, provider.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
