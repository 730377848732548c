package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-ng/container/heap"
	"github.com/go-ng/xsort"
	"github.com/xaionaro-go/avfile/logger"
	"github.com/xaionaro-go/xsync"
)

type node struct {
	Filter Filter
	Locker *xsync.Mutex
	IO     IO
	Inited bool
}

// Graph is a set of filters connected with links. It is processed in
// topological order, so sources go first.
type Graph struct {
	locker      xsync.Mutex
	nodes       []*node
	byFilter    map[Filter]*node
	links       []*Link
	initialized bool
}

func NewGraph() *Graph {
	return &Graph{
		byFilter: map[Filter]*node{},
	}
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph(filters:%d, links:%d)", len(g.nodes), len(g.links))
}

// Add adds the filters (if not already added).
func (g *Graph) Add(ctx context.Context, filters ...Filter) {
	g.locker.Do(ctx, func() {
		for _, f := range filters {
			g.addLocked(f)
		}
	})
}

func (g *Graph) addLocked(f Filter) *node {
	if n, ok := g.byFilter[f]; ok {
		return n
	}
	n := &node{Filter: f}
	if l, ok := f.(Locker); ok {
		n.Locker = l.FilterLocker()
	} else {
		n.Locker = &xsync.Mutex{}
	}
	g.nodes = append(g.nodes, n)
	g.byFilter[f] = n
	return n
}

// Link connects the output pin of one filter to the input pin of another,
// adding the filters if needed.
func (g *Graph) Link(
	ctx context.Context,
	from Filter,
	fromPin int,
	to Filter,
	toPin int,
) (*Link, error) {
	if fromPin < 0 || toPin < 0 {
		return nil, fmt.Errorf("invalid pins %d -> %d", fromPin, toPin)
	}
	return xsync.DoR2(ctx, &g.locker, func() (*Link, error) {
		src, dst := g.addLocked(from), g.addLocked(to)
		if src.IO.Output(fromPin) != nil {
			return nil, fmt.Errorf("the output pin %d of %s is already linked", fromPin, from)
		}
		if dst.IO.Input(toPin) != nil {
			return nil, fmt.Errorf("the input pin %d of %s is already linked", toPin, to)
		}
		l := newLink(from, fromPin, to, toPin)
		src.IO.Outputs = setPin(src.IO.Outputs, fromPin, l)
		dst.IO.Inputs = setPin(dst.IO.Inputs, toPin, l)
		g.links = append(g.links, l)
		return l, nil
	})
}

func setPin(pins []*Link, idx int, l *Link) []*Link {
	for len(pins) <= idx {
		pins = append(pins, nil)
	}
	pins[idx] = l
	return pins
}

// Order returns the filters in processing order.
func (g *Graph) Order(ctx context.Context) ([]Filter, error) {
	nodes, err := xsync.DoR2(ctx, &g.locker, g.orderLocked)
	if err != nil {
		return nil, err
	}
	result := make([]Filter, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, n.Filter)
	}
	return result, nil
}

// orderLocked is Kahn's algorithm; among the filters ready at the same
// time the one added first goes first.
func (g *Graph) orderLocked() ([]*node, error) {
	index := make(map[*node]int, len(g.nodes))
	for idx, n := range g.nodes {
		index[n] = idx
	}
	pending := make([]int, len(g.nodes))
	var ready xsort.OrderedAsc[int]
	for idx, n := range g.nodes {
		for _, in := range n.IO.Inputs {
			if in != nil {
				pending[idx]++
			}
		}
		if pending[idx] == 0 {
			heap.Push(&ready, idx)
		}
	}

	result := make([]*node, 0, len(g.nodes))
	for len(ready) > 0 {
		n := g.nodes[heap.Pop(&ready)]
		result = append(result, n)
		for _, out := range n.IO.Outputs {
			if out == nil {
				continue
			}
			idx := index[g.byFilter[out.To]]
			pending[idx]--
			if pending[idx] == 0 {
				heap.Push(&ready, idx)
			}
		}
	}
	if len(result) != len(g.nodes) {
		for idx, n := range g.nodes {
			if pending[idx] > 0 {
				return nil, ErrCycle{Filter: n.Filter}
			}
		}
	}
	return result, nil
}

func (g *Graph) orderedNodes(ctx context.Context) ([]*node, error) {
	return xsync.DoR2(ctx, &g.locker, g.orderLocked)
}

// Init initializes every filter. If some filter fails, the already
// initialized ones are uninitialized back.
func (g *Graph) Init(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Init")
	defer func() { logger.Tracef(ctx, "/Init: %v", _err) }()
	nodes, err := g.orderedNodes(ctx)
	if err != nil {
		return err
	}
	if !xsync.DoR1(ctx, &g.locker, func() bool {
		if g.initialized {
			return false
		}
		g.initialized = true
		return true
	}) {
		return ErrAlreadyInitialized{}
	}
	for idx, n := range nodes {
		err := xsync.DoR1(ctx, n.Locker, func() error {
			return n.Filter.Init(ctx)
		})
		if err != nil {
			for _, prev := range nodes[:idx] {
				g.uninitNode(ctx, prev)
			}
			g.locker.Do(ctx, func() {
				g.initialized = false
			})
			return ErrFilter{Filter: n.Filter, Err: fmt.Errorf("unable to initialize: %w", err)}
		}
		n.Inited = true
	}
	return nil
}

func (g *Graph) IsInitialized(ctx context.Context) bool {
	return xsync.DoR1(ctx, &g.locker, func() bool {
		return g.initialized
	})
}

func (g *Graph) uninitNode(ctx context.Context, n *node) error {
	if !n.Inited {
		return nil
	}
	n.Inited = false
	return xsync.DoR1(ctx, n.Locker, func() error {
		return n.Filter.Uninit(ctx)
	})
}

// Uninit uninitializes every filter (sinks first) and releases the frames
// left in the links.
func (g *Graph) Uninit(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Uninit")
	defer func() { logger.Tracef(ctx, "/Uninit: %v", _err) }()
	nodes, err := g.orderedNodes(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for idx := len(nodes) - 1; idx >= 0; idx-- {
		n := nodes[idx]
		if err := g.uninitNode(ctx, n); err != nil {
			errs = append(errs, ErrFilter{Filter: n.Filter, Err: err})
		}
	}
	g.Drain(ctx)
	g.locker.Do(ctx, func() {
		g.initialized = false
	})
	return errors.Join(errs...)
}

// Drain releases the frames left in all the links.
func (g *Graph) Drain(ctx context.Context) int {
	links := xsync.DoR1(ctx, &g.locker, func() []*Link {
		return append([]*Link(nil), g.links...)
	})
	var count int
	for _, l := range links {
		count += l.Drain(ctx)
	}
	if count > 0 {
		logger.Debugf(ctx, "released %d frames left in the links", count)
	}
	return count
}

// Process runs one tick over all the filters. A failing filter does not
// prevent the others from being processed.
func (g *Graph) Process(ctx context.Context, tick Tick) error {
	nodes, err := g.orderedNodes(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, n := range nodes {
		err := xsync.DoR1(xsync.WithNoLogging(ctx, true), n.Locker, func() error {
			return n.Filter.Process(ctx, tick, n.IO)
		})
		if err != nil {
			errs = append(errs, ErrFilter{Filter: n.Filter, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) preprocess(ctx context.Context, tick Tick) error {
	nodes, err := g.orderedNodes(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, n := range nodes {
		p, ok := n.Filter.(Preprocessor)
		if !ok {
			continue
		}
		if err := xsync.DoR1(ctx, n.Locker, func() error {
			return p.Preprocess(ctx, tick)
		}); err != nil {
			errs = append(errs, ErrFilter{Filter: n.Filter, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (g *Graph) postprocess(ctx context.Context) error {
	nodes, err := g.orderedNodes(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for idx := len(nodes) - 1; idx >= 0; idx-- {
		n := nodes[idx]
		p, ok := n.Filter.(Postprocessor)
		if !ok {
			continue
		}
		if err := xsync.DoR1(ctx, n.Locker, func() error {
			return p.Postprocess(ctx)
		}); err != nil {
			errs = append(errs, ErrFilter{Filter: n.Filter, Err: err})
		}
	}
	return errors.Join(errs...)
}
