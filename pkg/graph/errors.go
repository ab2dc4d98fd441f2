package graph

import "errors"

// Sentinel errors for graph construction and compilation.
// Wrapped with node/label context at the call site; match with errors.Is.
var (
	// ErrNoEntry indicates Compile was called before SetEntry.
	ErrNoEntry = errors.New("graph has no entry node")
	// ErrUnknownNode indicates an edge or entry references a node that was never added.
	ErrUnknownNode = errors.New("unknown node")
	// ErrDuplicateNode indicates AddNode was called twice with the same name.
	ErrDuplicateNode = errors.New("duplicate node")
	// ErrDuplicateEdge indicates a node already has an outgoing edge or router.
	ErrDuplicateEdge = errors.New("duplicate outgoing edge")
	// ErrNoRoute indicates a node has neither an outgoing edge nor a router.
	ErrNoRoute = errors.New("no outgoing edge")
	// ErrUnknownLabel indicates a router returned a label with no registered target.
	ErrUnknownLabel = errors.New("unknown routing label")
)
