package cgraph

import (
	"fmt"
	"sync"

	"github.com/rs/xid"

	"pipelined.dev/cgraph/log"
)

// Graph owns a set of nodes wired into an acyclic flow. It validates
// the wiring, starts every node's workers and joins them. There is no
// central scheduler: progress is driven purely by data availability
// and channel backpressure.
type Graph struct {
	uid    string
	name   string
	logger log.Logger

	mu      sync.Mutex
	nodes   []Node
	seen    map[Node]struct{}
	started bool

	wg       sync.WaitGroup
	failures failures
}

// Option provides a way to set functional parameters to the graph.
type Option func(*Graph)

// Name sets the graph name used in logs.
func Name(name string) Option {
	return func(g *Graph) {
		g.name = name
	}
}

// Logger sets the graph logger.
func Logger(l log.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// New creates a new graph and applies provided options.
func New(options ...Option) *Graph {
	g := &Graph{
		uid:    xid.New().String(),
		logger: log.Default(),
		seen:   make(map[Node]struct{}),
	}
	for _, option := range options {
		option(g)
	}
	if g.name == "" {
		g.name = g.uid
	}
	return g
}

// Add registers nodes in the graph. It fails if the graph has already
// started or a node is registered twice.
func (g *Graph) Add(nodes ...Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return ErrGraphStarted
	}
	for _, n := range nodes {
		if _, ok := g.seen[n]; ok {
			return fmt.Errorf("cgraph: node %s added twice", n.Name())
		}
		g.seen[n] = struct{}{}
		g.nodes = append(g.nodes, n)
	}
	return nil
}

// Start validates every node and spawns their workers. On a validation
// failure it returns WiringError with all problems found and starts
// nothing.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return ErrGraphStarted
	}
	var wiring []error
	if len(g.nodes) == 0 {
		wiring = append(wiring, ErrEmptyGraph)
	}
	for _, n := range g.nodes {
		if err := n.Validate(); err != nil {
			wiring = append(wiring, fmt.Errorf("node %s: %w", n.Name(), err))
		}
	}
	if len(wiring) > 0 {
		return &WiringError{Errors: wiring}
	}
	g.started = true
	g.logger.Info("graph ", g.name, ": starting ", len(g.nodes), " nodes")
	for _, n := range g.nodes {
		g.startNode(n)
	}
	return nil
}

// startNode spawns the node workers and a joiner that flushes the node
// once its last worker has exited.
func (g *Graph) startNode(n Node) {
	var workers sync.WaitGroup
	for w := 0; w < n.Workers(); w++ {
		w := w
		workers.Add(1)
		go func() {
			defer workers.Done()
			g.logger.Debug("graph ", g.name, ": node ", n.Name(), " worker ", w, " started")
			if err := n.Run(w); err != nil {
				g.failures.record(err)
			}
			g.logger.Debug("graph ", g.name, ": node ", n.Name(), " worker ", w, " done")
		}()
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		workers.Wait()
		if err := n.Flush(); err != nil {
			g.failures.record(&NodeError{Node: n.Name(), Err: fmt.Errorf("flush: %w", err)})
		}
		g.logger.Debug("graph ", g.name, ": node ", n.Name(), " done")
	}()
}

// Wait blocks until every node's workers have exited and returns all
// failures recorded during the run.
func (g *Graph) Wait() error {
	g.wg.Wait()
	g.logger.Info("graph ", g.name, ": done")
	return g.failures.ret()
}

// Run starts the graph and waits for its completion.
func (g *Graph) Run() error {
	if err := g.Start(); err != nil {
		return err
	}
	return g.Wait()
}

// failures collects errors recorded across all nodes during the run.
type failures struct {
	sync.Mutex
	errs RunErrors
}

func (f *failures) record(err error) {
	f.Lock()
	defer f.Unlock()
	f.errs = append(f.errs, err)
}

func (f *failures) ret() error {
	f.Lock()
	defer f.Unlock()
	return f.errs.ret()
}
