// Package env captures details about the nob environment.
package env

import "os"

// NobRoot is the root directory of the project being built.
var NobRoot = findNobRoot()

// BuildDir is the directory below NobRoot that receives all build
// artifacts. `nob cleanall` removes it wholesale.
const BuildDir = "build"

// SourceDir is the directory below NobRoot that is scanned for sources.
const SourceDir = "src"

func findNobRoot() string {
	if env := os.Getenv("NOBROOT"); env != "" {
		return env
	}
	return "." // default: run from the project root
}
