// Package unit models the user-described build tree and plans it into the
// flat command DAG executed by internal/plan.
package unit

import (
	"fmt"
	"io"
	"strings"

	"github.com/FelixKimmerle/nobcpp"
	"github.com/xlab/treeprint"
)

// DefaultCompiler is used by every unit until SetCompiler overrides it.
const DefaultCompiler = "c++"

// Unit is a node in the build tree. A unit with only a source is a header
// dependency, one with only a target is a link/archive unit, one with both
// is a compile unit, and one with neither is a pure aggregator. Children
// are owned exclusively by their parent.
type Unit struct {
	source   string
	target   string
	compiler string

	children     []*Unit
	compileFlags []string
	linkFlags    []string

	profiles []string // active profile names, informational
}

// New returns a unit with the given source and target paths; either may be
// empty.
func New(source, target string) *Unit {
	return &Unit{source: source, target: target, compiler: DefaultCompiler}
}

// AddDep appends child. Ownership transfers to u; the same unit must not be
// attached to two parents.
func (u *Unit) AddDep(child *Unit) {
	u.children = append(u.children, child)
}

// AddCompileFlag appends one compile flag to the unit's local flags.
// Duplicates are permitted and order is preserved.
func (u *Unit) AddCompileFlag(flag string) {
	u.compileFlags = append(u.compileFlags, flag)
}

// AddCompileFlags appends compile flags in order.
func (u *Unit) AddCompileFlags(flags ...string) {
	u.compileFlags = append(u.compileFlags, flags...)
}

// AddLinkFlag appends one link flag.
func (u *Unit) AddLinkFlag(flag string) {
	u.linkFlags = append(u.linkFlags, flag)
}

// AddLinkFlags appends link flags in order.
func (u *Unit) AddLinkFlags(flags ...string) {
	u.linkFlags = append(u.linkFlags, flags...)
}

// SetCompiler sets the compiler on u and recursively on all descendants,
// overriding any previously set per-node compiler.
func (u *Unit) SetCompiler(name string) {
	u.compiler = name
	for _, c := range u.children {
		c.SetCompiler(name)
	}
}

// ActivateProfile records name in the unit's active-profile set.
func (u *Unit) ActivateProfile(name string) {
	u.profiles = append(u.profiles, name)
}

// ActiveProfiles returns the profile names activated on this unit, in
// activation order.
func (u *Unit) ActiveProfiles() []string {
	return u.profiles
}

// Source returns the unit's input path, if any.
func (u *Unit) Source() string { return u.source }

// Target returns the unit's output path, if any. The run verb invokes it.
func (u *Unit) Target() string { return u.target }

// Kind returns the target kind selected by the target path's extension.
func (u *Unit) Kind() nobcpp.TargetKind {
	return nobcpp.KindOf(u.target)
}

// Children returns the unit's direct children in insertion order.
func (u *Unit) Children() []*Unit { return u.children }

// PrintDepth writes a post-order dump of the tree to w, indented by depth.
func (u *Unit) PrintDepth(w io.Writer) {
	u.printDepth(w, 0)
}

func (u *Unit) printDepth(w io.Writer, depth int) {
	for _, c := range u.children {
		c.printDepth(w, depth+1)
	}
	indent := strings.Repeat("  ", depth)
	switch {
	case u.source != "" && u.target != "":
		fmt.Fprintf(w, "%sCompilation unit: %s -> %s\n", indent, u.source, u.target)
	case u.source != "":
		fmt.Fprintf(w, "%sHeader dep: %s\n", indent, u.source)
	case u.target != "":
		fmt.Fprintf(w, "%sTarget: %s\n", indent, u.target)
	default:
		fmt.Fprintf(w, "%sAggregate\n", indent)
	}
}

// Tree renders the unit tree for the tree verb.
func (u *Unit) Tree() string {
	t := treeprint.New()
	t.SetValue(u.label())
	u.addBranches(t)
	return t.String()
}

func (u *Unit) addBranches(t treeprint.Tree) {
	for _, c := range u.children {
		if len(c.children) == 0 {
			t.AddNode(c.label())
			continue
		}
		c.addBranches(t.AddBranch(c.label()))
	}
}

func (u *Unit) label() string {
	switch {
	case u.source != "" && u.target != "":
		return fmt.Sprintf("%s → %s", u.source, u.target)
	case u.source != "":
		return u.source
	case u.target != "":
		return fmt.Sprintf("%s (%s)", u.target, u.Kind())
	}
	return "(aggregate)"
}
