package unit

import (
	"os"

	"github.com/FelixKimmerle/nobcpp"
	"github.com/FelixKimmerle/nobcpp/internal/env"
	"github.com/FelixKimmerle/nobcpp/internal/plan"
)

// Clean plans the removal of every intermediate and final target in
// post-order; object targets also drop their compiler-written .d file.
// With removeDir set, the plan is a single removal of the build root.
func (u *Unit) Clean(removeDir bool) *plan.Plan {
	p := plan.New()
	if removeDir {
		p.AddCmd(plan.CompileCommand{
			Command: "rm",
			Args:    []string{"-r", env.BuildDir},
			Enabled: true,
		})
		return p
	}
	u.clean(p)
	return p
}

func (u *Unit) clean(p *plan.Plan) {
	for _, c := range u.children {
		c.clean(p)
	}
	if u.target == "" {
		return
	}
	// Nodes for files which are already gone are emitted disabled, so
	// cleaning twice does not fail the scheduler.
	p.AddCmd(plan.CompileCommand{
		Command: "rm",
		Args:    []string{u.target},
		Enabled: fileExists(u.target),
	})
	if u.Kind() == nobcpp.KindObject {
		d := nobcpp.DepFilePath(u.target)
		p.AddCmd(plan.CompileCommand{
			Command: "rm",
			Args:    []string{d},
			Enabled: fileExists(d),
		})
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
