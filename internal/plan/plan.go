// Package plan holds the flat command DAG produced by planning a unit tree
// and executes it with bounded parallelism.
package plan

import (
	"strings"

	"golang.org/x/xerrors"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// CompileCommand is one external invocation. It is immutable once added to
// a Plan.
type CompileCommand struct {
	// Command is the executable name, resolved via PATH at launch time.
	Command string
	// Args is the full argv tail.
	Args []string
	// Enabled is false for up-to-date nodes: they are not executed, but
	// their completion still propagates to dependents.
	Enabled bool
	// IsCompile marks source→object compilations; only those are written
	// to the compilation database.
	IsCompile bool
}

// String returns the command line as a single space-separated string.
func (c *CompileCommand) String() string {
	return c.Command + " " + strings.Join(c.Args, " ")
}

// Plan is an append-only DAG of compile commands: nodes are added first,
// then edges. In-degrees are maintained incrementally so that execution can
// consume them directly without an eager topological sort.
type Plan struct {
	cmds  []CompileCommand
	out   [][]int
	indeg []int
}

func New() *Plan {
	return &Plan{}
}

// AddCmd appends cmd and returns its zero-based node id.
func (p *Plan) AddCmd(cmd CompileCommand) int {
	p.cmds = append(p.cmds, cmd)
	p.out = append(p.out, nil)
	p.indeg = append(p.indeg, 0)
	return len(p.cmds) - 1
}

// AddEdge appends an out-edge src→dst and bumps dst's in-degree. It reports
// false on invalid endpoints. Duplicate edges are tolerated; they inflate
// the in-degree and the out-edge list symmetrically.
func (p *Plan) AddEdge(src, dst int) bool {
	if src < 0 || src >= len(p.cmds) || dst < 0 || dst >= len(p.cmds) || src == dst {
		return false
	}
	p.out[src] = append(p.out[src], dst)
	p.indeg[dst]++
	return true
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.cmds) }

// Cmd returns the command at node id.
func (p *Plan) Cmd(id int) CompileCommand { return p.cmds[id] }

// InDegree returns the accumulated in-degree of node id.
func (p *Plan) InDegree(id int) int { return p.indeg[id] }

// Successors returns the out-edge list of node id.
func (p *Plan) Successors(id int) []int { return p.out[id] }

// checkAcyclic reports an error naming the offending commands if the plan
// contains a cycle. Cycles are user errors; they are rejected before any
// command runs.
func (p *Plan) checkAcyclic() error {
	g := simple.NewDirectedGraph()
	for id := range p.cmds {
		g.AddNode(simple.Node(id))
	}
	for src, succs := range p.out {
		for _, dst := range succs {
			g.SetEdge(simple.Edge{F: simple.Node(src), T: simple.Node(dst)})
		}
	}
	if _, err := topo.Sort(g); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		var cyclic []string
		for _, component := range uo {
			for _, n := range component {
				cyclic = append(cyclic, p.cmds[n.ID()].String())
			}
		}
		return xerrors.Errorf("dependency cycle between: %s", strings.Join(cyclic, "; "))
	}
	return nil
}
