// Package depfile parses the make-style dependency files which gcc and
// clang write when compiling with -MMD.
package depfile

import (
	"io/ioutil"
	"strings"

	"golang.org/x/xerrors"
)

// Parse reads the single make rule in the file at path and returns the
// header paths it mentions. The rule's target (everything up to and
// including the first colon) and its own .cpp input are skipped.
func Parse(path string) ([]string, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("depfile: %w", err)
	}
	deps, err := parse(string(b))
	if err != nil {
		return nil, xerrors.Errorf("depfile %s: %w", path, err)
	}
	return deps, nil
}

func parse(content string) ([]string, error) {
	// Backslash-newline is the line continuation character; gcc emits no
	// other escapes for the paths we feed it.
	content = strings.ReplaceAll(content, "\\\r\n", " ")
	content = strings.ReplaceAll(content, "\\\n", " ")

	idx := strings.IndexByte(content, ':')
	if idx == -1 {
		return nil, xerrors.New("expected ':' in depfile")
	}

	var deps []string
	skippedInput := false
	for _, tok := range strings.Fields(content[idx+1:]) {
		if !skippedInput && strings.HasSuffix(tok, ".cpp") {
			// The first .cpp token is the rule's own input.
			skippedInput = true
			continue
		}
		deps = append(deps, tok)
	}
	return deps, nil
}
