// Package nobcpp is a small, self-contained build orchestrator for
// native-code projects. A driver program describes its build as a tree of
// units (see internal/unit), which is planned into a flat command DAG (see
// internal/plan) and executed with bounded parallelism.
package nobcpp

import (
	"path/filepath"
	"strings"
)

// TargetKind classifies a unit's output by the extension of its target path.
type TargetKind int

const (
	KindNone TargetKind = iota
	KindObject
	KindStaticLib
	KindDynamicLib
	KindExecutable
)

func (k TargetKind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindStaticLib:
		return "static library"
	case KindDynamicLib:
		return "dynamic library"
	case KindExecutable:
		return "executable"
	}
	return "none"
}

// KindOf returns the target kind selected by the extension of target:
// .o → object, .a → static library, .so → dynamic library, .exe or no
// extension → executable. Anything else (including the empty path) is
// KindNone.
func KindOf(target string) TargetKind {
	if target == "" {
		return KindNone
	}
	switch filepath.Ext(target) {
	case ".o":
		return KindObject
	case ".a":
		return KindStaticLib
	case ".so":
		return KindDynamicLib
	case ".exe", "":
		return KindExecutable
	}
	return KindNone
}

// ObjectPath maps a source file below the source tree to its object file
// below build/, e.g. src/net/conn.cpp → build/net/conn.o. The first path
// element is replaced, the extension becomes .o.
func ObjectPath(src string) string {
	rel := filepath.ToSlash(src)
	if idx := strings.IndexByte(rel, '/'); idx > -1 {
		rel = rel[idx+1:]
	}
	return filepath.Join("build", strings.TrimSuffix(rel, filepath.Ext(rel))+".o")
}

// DepFilePath returns the path of the make-style dependency file the
// compiler writes next to obj (gcc -MMD replaces the output extension).
func DepFilePath(obj string) string {
	return strings.TrimSuffix(obj, filepath.Ext(obj)) + ".d"
}
