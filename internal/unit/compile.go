package unit

import (
	"os"
	"path/filepath"
	"time"

	"github.com/FelixKimmerle/nobcpp"
	"github.com/FelixKimmerle/nobcpp/internal/plan"
	"golang.org/x/xerrors"
)

// Compile plans the tree into a command DAG. With fullRebuild set, every
// emitted command is enabled regardless of on-disk staleness.
func (u *Unit) Compile(fullRebuild bool) (*plan.Plan, error) {
	p := plan.New()
	if _, err := u.compile(p, nil, nobcpp.KindNone, fullRebuild); err != nil {
		return nil, err
	}
	return p, nil
}

// planned is what a child reports to its parent: whether the child's
// subtree is stale, and the plan node it emitted, if any.
type planned struct {
	rebuild bool
	node    int // -1 when no command was emitted
}

func (u *Unit) compile(p *plan.Plan, inherited []string, ancestor nobcpp.TargetKind, full bool) (planned, error) {
	// Ancestor flags first, then local ones.
	local := make([]string, 0, len(inherited)+len(u.compileFlags))
	local = append(local, inherited...)
	local = append(local, u.compileFlags...)

	// The nearest enclosing library/executable kind is threaded down so
	// that objects compiled into a dynamic library receive -fPIC.
	childKind := ancestor
	switch u.Kind() {
	case nobcpp.KindExecutable, nobcpp.KindStaticLib, nobcpp.KindDynamicLib:
		childKind = u.Kind()
	}

	var (
		depObjects   []string
		headerDeps   []string
		childNodes   []int
		childRebuild bool
	)
	for _, c := range u.children {
		res, err := c.compile(p, local, childKind, full)
		if err != nil {
			return planned{}, err
		}
		childRebuild = childRebuild || res.rebuild
		if c.target != "" {
			depObjects = append(depObjects, c.target)
		} else if c.source != "" {
			headerDeps = append(headerDeps, c.source)
		}
		if res.node >= 0 {
			childNodes = append(childNodes, res.node)
		}
	}

	if u.target == "" {
		// Aggregators and header deps emit no command. A header dep
		// contributes only its mtime, which the parent inspects itself.
		return planned{rebuild: false, node: -1}, nil
	}

	if err := os.MkdirAll(filepath.Dir(u.target), 0755); err != nil {
		return planned{}, xerrors.Errorf("target dir for %s: %w", u.target, err)
	}

	targetTime, err := mtime(u.target)
	exists := err == nil
	rebuild := childRebuild || !exists
	for _, h := range headerDeps {
		ht, err := mtime(h)
		if err != nil {
			// A header listed in a stale .d file may have been deleted;
			// rebuilding regenerates the .d file.
			rebuild = true
			continue
		}
		if exists && ht.After(targetTime) {
			rebuild = true
		}
	}

	isCompile := u.source != ""
	if isCompile {
		st, err := mtime(u.source)
		if err != nil {
			return planned{}, xerrors.Errorf("source %s: %w", u.source, err)
		}
		if exists && st.After(targetTime) {
			rebuild = true
		}
	} else {
		for _, obj := range depObjects {
			ot, err := mtime(obj)
			if err != nil {
				rebuild = true
				continue
			}
			if exists && ot.After(targetTime) {
				rebuild = true
			}
		}
	}
	enabled := rebuild || full

	var cmd plan.CompileCommand
	if isCompile {
		var args []string
		if ancestor == nobcpp.KindDynamicLib {
			args = append(args, "-fPIC")
		}
		args = append(args, local...)
		args = append(args, "-MMD", "-c", "-o", u.target, u.source)
		cmd = plan.CompileCommand{
			Command:   u.compiler,
			Args:      args,
			Enabled:   enabled,
			IsCompile: true,
		}
	} else {
		switch u.Kind() {
		case nobcpp.KindExecutable, nobcpp.KindDynamicLib:
			var args []string
			if u.Kind() == nobcpp.KindDynamicLib {
				// -fPIC was already applied to the children's compiles.
				args = append(args, "-shared")
			}
			args = append(args, u.linkFlags...)
			args = append(args, "-o", u.target)
			args = append(args, depObjects...)
			cmd = plan.CompileCommand{Command: u.compiler, Args: args, Enabled: enabled}
		case nobcpp.KindStaticLib:
			// Link flags do not apply to archives.
			args := append([]string{"rcs", u.target}, depObjects...)
			cmd = plan.CompileCommand{Command: "ar", Args: args, Enabled: enabled}
		default:
			return planned{}, xerrors.Errorf("target %s: unsupported target kind %v for a link unit", u.target, u.Kind())
		}
	}

	id := p.AddCmd(cmd)
	for _, n := range childNodes {
		p.AddEdge(n, id)
	}
	return planned{rebuild: rebuild, node: id}, nil
}

func mtime(path string) (time.Time, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return fi.ModTime(), nil
}
