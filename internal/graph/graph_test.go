package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptomon/internal/models"
)

func fetchTask(name string, interval time.Duration) *models.Task {
	return &models.Task{Name: name, Exchange: "okx", Function: "fetch_ticker", Interval: interval}
}

func derivedTask(name string, deps ...string) *models.Task {
	return &models.Task{Name: name, Dependencies: deps}
}

func TestTopologicalOrderDepsFirst(t *testing.T) {
	g := New([]*models.Task{
		derivedTask("spread", "okx_btc", "binance_btc"),
		fetchTask("okx_btc", 2*time.Second),
		fetchTask("binance_btc", 2*time.Second),
		derivedTask("alert", "spread"),
	})
	require.NoError(t, g.Validate())

	order := g.TopologicalOrder()
	require.Len(t, order, 4)
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["okx_btc"], pos["spread"])
	assert.Less(t, pos["binance_btc"], pos["spread"])
	assert.Less(t, pos["spread"], pos["alert"])
}

func TestTopologicalOrderDeterministic(t *testing.T) {
	tasks := []*models.Task{
		fetchTask("b", time.Second),
		fetchTask("a", time.Second),
		derivedTask("c", "a", "b"),
	}
	g := New(tasks)
	require.NoError(t, g.Validate())
	// Independent roots keep declaration order.
	assert.Equal(t, []string{"b", "a", "c"}, g.TopologicalOrder())
}

func TestValidateCycle(t *testing.T) {
	g := New([]*models.Task{
		{Name: "a", Dependencies: []string{"b"}, Interval: time.Second},
		{Name: "b", Dependencies: []string{"a"}},
	})
	err := g.Validate()
	require.Error(t, err)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Members, "a")
	assert.Contains(t, cerr.Members, "b")
}

func TestValidateUnknownDependency(t *testing.T) {
	g := New([]*models.Task{
		fetchTask("okx_btc", time.Second),
		derivedTask("spread", "okx_btc", "ghost"),
	})
	err := g.Validate()
	var uerr *UnknownDependencyError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "spread", uerr.Task)
	assert.Equal(t, "ghost", uerr.Dependency)
}

func TestValidateUnreachable(t *testing.T) {
	// No interval and no dependencies: nothing ever runs it.
	g := New([]*models.Task{derivedTask("orphan")})
	var rerr *UnreachableTaskError
	require.ErrorAs(t, g.Validate(), &rerr)
	assert.Equal(t, "orphan", rerr.Task)

	// Depends only on tasks that are themselves unreachable.
	g = New([]*models.Task{
		derivedTask("mid", "leaf"),
		derivedTask("leaf"),
	})
	require.ErrorAs(t, g.Validate(), &rerr)
}

func TestValidateDuplicateName(t *testing.T) {
	g := New([]*models.Task{
		fetchTask("okx_btc", time.Second),
		fetchTask("okx_btc", 2*time.Second),
	})
	var derr *DuplicateTaskError
	require.ErrorAs(t, g.Validate(), &derr)
	assert.Equal(t, "okx_btc", derr.Task)
}

func TestDependentsOf(t *testing.T) {
	g := New([]*models.Task{
		fetchTask("okx_btc", time.Second),
		derivedTask("spread", "okx_btc"),
		derivedTask("alert", "okx_btc"),
	})
	require.NoError(t, g.Validate())
	assert.Equal(t, []string{"spread", "alert"}, g.DependentsOf("okx_btc"))
	assert.Empty(t, g.DependentsOf("alert"))
}

func TestTransitiveDeps(t *testing.T) {
	g := New([]*models.Task{
		fetchTask("okx_btc", time.Second),
		fetchTask("binance_btc", time.Second),
		derivedTask("spread", "okx_btc", "binance_btc"),
		derivedTask("alert", "spread"),
	})
	require.NoError(t, g.Validate())

	deps := g.TransitiveDeps("alert")
	assert.Len(t, deps, 3)
	assert.Contains(t, deps, "spread")
	assert.Contains(t, deps, "okx_btc")
	assert.Contains(t, deps, "binance_btc")
}

func TestCascadeFromSkipsIntervalBearing(t *testing.T) {
	g := New([]*models.Task{
		fetchTask("okx_btc", time.Second),
		derivedTask("spread", "okx_btc"),
		// Own timer: excluded from cascades, and nothing below it cascades either.
		{Name: "sampled", Dependencies: []string{"okx_btc"}, Interval: 5 * time.Second},
		derivedTask("under_sampled", "sampled"),
		derivedTask("alert", "spread"),
	})
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"spread", "alert"}, g.CascadeFrom("okx_btc"))
	assert.Equal(t, []string{"under_sampled"}, g.CascadeFrom("sampled"))
}
