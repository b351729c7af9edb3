package plan

import (
	"encoding/json"
	"path/filepath"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// CompileDBPath is where WriteCompileDB places the compilation database,
// in the standard clangd-consumable layout.
const CompileDBPath = "compile_commands.json"

type compileDBEntry struct {
	Directory string `json:"directory"`
	Command   string `json:"command"`
	File      string `json:"file"`
}

// WriteCompileDB writes ./compile_commands.json containing exactly the
// compile-kind nodes. The file is replaced atomically on each run.
func (p *Plan) WriteCompileDB() error {
	entries := []compileDBEntry{}
	for i := range p.cmds {
		c := &p.cmds[i]
		if !c.IsCompile {
			continue
		}
		// The source is the last positional argument of a compile command.
		src := c.Args[len(c.Args)-1]
		abs, err := filepath.Abs(src)
		if err != nil {
			return xerrors.Errorf("compile db: %w", err)
		}
		entries = append(entries, compileDBEntry{
			Directory: ".",
			Command:   c.String(),
			File:      abs,
		})
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return xerrors.Errorf("compile db: %w", err)
	}
	if err := renameio.WriteFile(CompileDBPath, append(b, '\n'), 0644); err != nil {
		return xerrors.Errorf("compile db: %w", err)
	}
	return nil
}
