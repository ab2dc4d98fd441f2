package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// walkState records the path a test walk took.
type walkState struct {
	visited []string
	errs    []string
	done    bool
}

func visit(name string) NodeFunc[walkState] {
	return func(_ context.Context, s walkState) (walkState, error) {
		s.visited = append(s.visited, name)
		return s, nil
	}
}

func TestInvoke_LinearWalk(t *testing.T) {
	g, err := NewBuilder[walkState]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddNode("c", visit("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", End).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, final.visited)
}

func TestInvoke_ConditionalRouting(t *testing.T) {
	g, err := NewBuilder[walkState]().
		AddNode("start", visit("start")).
		AddNode("left", visit("left")).
		AddNode("right", visit("right")).
		AddConditionalEdges("start", func(s walkState) string {
			if s.done {
				return "finish"
			}
			return "continue"
		}, map[string]string{
			"continue": "left",
			"finish":   "right",
		}).
		AddEdge("left", End).
		AddEdge("right", End).
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "left"}, final.visited)

	final, err = g.Invoke(context.Background(), walkState{done: true}, RunOptions[walkState]{})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "right"}, final.visited)
}

func TestInvoke_NodeErrorGoesThroughHookAndRoutingContinues(t *testing.T) {
	boom := errors.New("boom")
	g, err := NewBuilder[walkState]().
		AddNode("fail", func(_ context.Context, s walkState) (walkState, error) {
			s.visited = append(s.visited, "fail")
			return s, boom
		}).
		AddNode("recover", visit("recover")).
		AddConditionalEdges("fail", func(s walkState) string {
			if len(s.errs) > 0 {
				return "recover"
			}
			return "end"
		}, map[string]string{
			"recover": "recover",
			"end":     End,
		}).
		AddEdge("recover", End).
		SetEntry("fail").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{
		OnNodeError: func(s walkState, node string, err error) walkState {
			s.errs = append(s.errs, fmt.Sprintf("%s: %v", node, err))
			return s
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fail", "recover"}, final.visited)
	require.Len(t, final.errs, 1)
	assert.Contains(t, final.errs[0], "boom")
}

func TestInvoke_PanicRecoveredAsNodeError(t *testing.T) {
	g, err := NewBuilder[walkState]().
		AddNode("panics", func(_ context.Context, s walkState) (walkState, error) {
			panic("kaboom")
		}).
		AddEdge("panics", End).
		SetEntry("panics").
		Compile()
	require.NoError(t, err)

	var captured error
	_, err = g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{
		OnNodeError: func(s walkState, node string, err error) walkState {
			captured = err
			return s
		},
	})
	require.NoError(t, err)
	require.Error(t, captured)
	assert.Contains(t, captured.Error(), "kaboom")
}

func TestInvoke_HopBudgetProducesTerminalState(t *testing.T) {
	// Tight two-node cycle; only the budget stops it.
	g, err := NewBuilder[walkState]().
		AddNode("ping", visit("ping")).
		AddNode("pong", visit("pong")).
		AddEdge("ping", "pong").
		AddEdge("pong", "ping").
		SetEntry("ping").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{
		MaxHops: 7,
		OnBudgetExhausted: func(s walkState) walkState {
			s.done = true
			return s
		},
	})
	require.NoError(t, err)
	assert.Len(t, final.visited, 7)
	assert.True(t, final.done, "budget hook should produce the terminal state")
}

func TestInvoke_DefaultMaxHops(t *testing.T) {
	g, err := NewBuilder[walkState]().
		AddNode("loop", visit("loop")).
		AddEdge("loop", "loop").
		SetEntry("loop").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{})
	require.NoError(t, err)
	assert.Len(t, final.visited, DefaultMaxHops)
}

func TestInvoke_CancellationStopsAfterInFlightNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g, err := NewBuilder[walkState]().
		AddNode("first", func(_ context.Context, s walkState) (walkState, error) {
			s.visited = append(s.visited, "first")
			cancel()
			return s, nil
		}).
		AddNode("never", visit("never")).
		AddEdge("first", "never").
		AddEdge("never", End).
		SetEntry("first").
		Compile()
	require.NoError(t, err)

	final, err := g.Invoke(ctx, walkState{}, RunOptions[walkState]{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, final.visited, "the in-flight node finishes, nothing after it runs")
}

func TestInvoke_UnknownRouterLabel(t *testing.T) {
	g, err := NewBuilder[walkState]().
		AddNode("start", visit("start")).
		AddConditionalEdges("start", func(walkState) string { return "nowhere" },
			map[string]string{"somewhere": End}).
		SetEntry("start").
		Compile()
	require.NoError(t, err)

	_, err = g.Invoke(context.Background(), walkState{}, RunOptions[walkState]{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestCompile_WiringErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Builder[walkState]
		wantErr error
	}{
		{
			name: "no entry",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddEdge("a", End)
			},
			wantErr: ErrNoEntry,
		},
		{
			name: "entry not registered",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddEdge("a", End).
					SetEntry("ghost")
			},
			wantErr: ErrUnknownNode,
		},
		{
			name: "edge to missing node",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddEdge("a", "ghost").
					SetEntry("a")
			},
			wantErr: ErrUnknownNode,
		},
		{
			name: "node without outgoing edge",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					SetEntry("a")
			},
			wantErr: ErrNoRoute,
		},
		{
			name: "duplicate node",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddNode("a", visit("a")).
					AddEdge("a", End).
					SetEntry("a")
			},
			wantErr: ErrDuplicateNode,
		},
		{
			name: "second outgoing edge",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddNode("b", visit("b")).
					AddEdge("a", "b").
					AddEdge("a", End).
					AddEdge("b", End).
					SetEntry("a")
			},
			wantErr: ErrDuplicateEdge,
		},
		{
			name: "router label to missing node",
			build: func() *Builder[walkState] {
				return NewBuilder[walkState]().
					AddNode("a", visit("a")).
					AddConditionalEdges("a", func(walkState) string { return "x" },
						map[string]string{"x": "ghost"}).
					SetEntry("a")
			},
			wantErr: ErrUnknownNode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build().Compile()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
