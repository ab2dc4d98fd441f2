// Package graph implements a directed graph runtime over a typed state value.
// A graph is a set of named nodes connected by unconditional edges and by
// conditional edges whose router function picks the next hop from the state.
// Execution is sequential and single-threaded within a run; any concurrency
// belongs inside a node.
package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// End is the distinguished terminal marker. An edge or routing label that
// targets End stops the walk.
const End = "__end__"

// DefaultMaxHops bounds a single walk. Cycles are legal; the cap is what
// terminates runaway loops.
const DefaultMaxHops = 50

// NodeFunc executes one processing step, returning the successor state.
// Returning an error does not abort the walk: the error is handed to the
// run's error hook and routing continues, so a conditional edge downstream
// can react to whatever the hook recorded in the state.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// RouterFunc inspects the state and returns the label of the conditional
// edge to follow.
type RouterFunc[S any] func(state S) string

type conditionalEdge[S any] struct {
	route   RouterFunc[S]
	targets map[string]string // label → node name (or End)
}

// Builder accumulates nodes and edges and produces an immutable Graph.
type Builder[S any] struct {
	nodes   map[string]NodeFunc[S]
	edges   map[string]string
	routers map[string]conditionalEdge[S]
	entry   string
	errs    []error
}

// NewBuilder returns an empty graph builder.
func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{
		nodes:   make(map[string]NodeFunc[S]),
		edges:   make(map[string]string),
		routers: make(map[string]conditionalEdge[S]),
	}
}

// AddNode registers a named node. Names must be unique and must not be End.
func (b *Builder[S]) AddNode(name string, fn NodeFunc[S]) *Builder[S] {
	if name == End {
		b.errs = append(b.errs, fmt.Errorf("%w: %q is reserved", ErrDuplicateNode, End))
		return b
	}
	if _, exists := b.nodes[name]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, name))
		return b
	}
	b.nodes[name] = fn
	return b
}

// AddEdge registers an unconditional edge source → target.
func (b *Builder[S]) AddEdge(source, target string) *Builder[S] {
	if b.hasOutgoing(source) {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateEdge, source))
		return b
	}
	b.edges[source] = target
	return b
}

// AddConditionalEdges registers a router on source. The router's returned
// label is resolved through targets to the next node.
func (b *Builder[S]) AddConditionalEdges(source string, route RouterFunc[S], targets map[string]string) *Builder[S] {
	if b.hasOutgoing(source) {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateEdge, source))
		return b
	}
	b.routers[source] = conditionalEdge[S]{route: route, targets: targets}
	return b
}

// SetEntry declares the node the walk starts at.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

func (b *Builder[S]) hasOutgoing(source string) bool {
	if _, ok := b.edges[source]; ok {
		return true
	}
	_, ok := b.routers[source]
	return ok
}

// Compile validates the wiring and returns the runnable graph. Every node
// must have exactly one outgoing edge or router (or target End through one),
// and every referenced target must exist.
func (b *Builder[S]) Compile() (*Graph[S], error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.entry == "" {
		return nil, ErrNoEntry
	}
	if _, ok := b.nodes[b.entry]; !ok {
		return nil, fmt.Errorf("%w: entry %s", ErrUnknownNode, b.entry)
	}
	for source, target := range b.edges {
		if _, ok := b.nodes[source]; !ok {
			return nil, fmt.Errorf("%w: edge source %s", ErrUnknownNode, source)
		}
		if target != End {
			if _, ok := b.nodes[target]; !ok {
				return nil, fmt.Errorf("%w: edge target %s", ErrUnknownNode, target)
			}
		}
	}
	for source, cond := range b.routers {
		if _, ok := b.nodes[source]; !ok {
			return nil, fmt.Errorf("%w: router source %s", ErrUnknownNode, source)
		}
		for label, target := range cond.targets {
			if target != End {
				if _, ok := b.nodes[target]; !ok {
					return nil, fmt.Errorf("%w: router %s label %s targets %s", ErrUnknownNode, source, label, target)
				}
			}
		}
	}
	for name := range b.nodes {
		if !b.hasOutgoing(name) {
			return nil, fmt.Errorf("%w: %s", ErrNoRoute, name)
		}
	}
	return &Graph[S]{
		nodes:   b.nodes,
		edges:   b.edges,
		routers: b.routers,
		entry:   b.entry,
	}, nil
}

// Graph is a compiled, immutable graph. Safe for concurrent Invoke calls;
// each walk owns its own state.
type Graph[S any] struct {
	nodes   map[string]NodeFunc[S]
	edges   map[string]string
	routers map[string]conditionalEdge[S]
	entry   string
}

// RunOptions tune a single Invoke.
type RunOptions[S any] struct {
	// MaxHops caps the number of node executions. Zero means DefaultMaxHops.
	MaxHops int
	// OnNodeError is called when a node returns an error or panics. It must
	// fold the failure into the state (an error slot) so routing can react.
	// Nil means the error is logged and the state passes through unchanged.
	OnNodeError func(state S, node string, err error) S
	// OnBudgetExhausted produces the terminal state when MaxHops is reached.
	// Reaching the cap is a graceful outcome, not an error. Nil means the
	// last state is returned as-is.
	OnBudgetExhausted func(state S) S
	// Logger receives per-hop debug records. Nil means slog.Default().
	Logger *slog.Logger
}

// Invoke walks the graph from the entry node until End or the hop cap.
// Node errors never escape: they go through OnNodeError and routing
// continues. Cancelling ctx stops the walk after the in-flight node and
// returns the context error with the state as it stood. Beyond that, the
// only errors returned are wiring faults surfaced at runtime (router
// label with no target).
func (g *Graph[S]) Invoke(ctx context.Context, state S, opts RunOptions[S]) (S, error) {
	maxHops := opts.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	current := g.entry
	for hop := 0; hop < maxHops; hop++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Graph walk cancelled", "next_node", current, "hop", hop)
			return state, err
		}
		next, newState, err := g.step(ctx, current, state, opts, logger)
		state = newState
		if err != nil {
			return state, err
		}
		if next == End {
			return state, nil
		}
		current = next
	}

	logger.Warn("Graph hop budget exhausted", "max_hops", maxHops, "last_node", current)
	if opts.OnBudgetExhausted != nil {
		state = opts.OnBudgetExhausted(state)
	}
	return state, nil
}

// step runs one node and resolves its outgoing edge.
func (g *Graph[S]) step(ctx context.Context, current string, state S, opts RunOptions[S], logger *slog.Logger) (next string, out S, err error) {
	fn, ok := g.nodes[current]
	if !ok {
		return "", state, fmt.Errorf("%w: %s", ErrUnknownNode, current)
	}

	out, nodeErr := runNode(ctx, fn, state)
	if nodeErr != nil {
		logger.Warn("Graph node failed", "node", current, "error", nodeErr)
		if opts.OnNodeError != nil {
			out = opts.OnNodeError(out, current, nodeErr)
		}
	} else {
		logger.Debug("Graph node completed", "node", current)
	}

	if target, ok := g.edges[current]; ok {
		return target, out, nil
	}
	cond := g.routers[current] // Compile guarantees one of the two exists
	label := cond.route(out)
	target, ok := cond.targets[label]
	if !ok {
		return "", out, fmt.Errorf("%w: node %s label %q", ErrUnknownLabel, current, label)
	}
	logger.Debug("Graph routed", "node", current, "label", label, "target", target)
	return target, out, nil
}

// runNode executes fn with panic recovery. A panicking node degrades to an
// error so the walk can keep going; on panic the pre-node state is kept.
func runNode[S any](ctx context.Context, fn NodeFunc[S], state S) (out S, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = state
			err = fmt.Errorf("node panic: %v", r)
		}
	}()
	return fn(ctx, state)
}
