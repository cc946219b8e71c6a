package planner

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridoystarlord/depmigrate/migration"
	"github.com/ridoystarlord/depmigrate/schema"
)

func key(app, name string) migration.Key {
	return migration.Key{App: app, Name: name}
}

func mustGraph(t *testing.T, migrations ...*migration.Migration) *Graph {
	t.Helper()
	reg := migration.NewRegistry()
	require.NoError(t, reg.Register(migrations...))
	g, err := NewGraph(reg)
	require.NoError(t, err)
	return g
}

// analyzerHistory mirrors the two apps whose migrations lead up to the
// analyzerreport rename.
func analyzerHistory() []*migration.Migration {
	return []*migration.Migration{
		migration.New("api_app", "0001_initial", nil,
			migration.CreateModel("job", []schema.Column{{Name: "id", Type: "integer", Primary: true}}, nil)),
		migration.New("api_app", "0008_remove_job_runtime_configuration", []migration.Key{key("api_app", "0001_initial")}),
		migration.New("analyzers_manager", "0001_initial", []migration.Key{key("api_app", "0001_initial")},
			migration.CreateModel("analyzerreport", []schema.Column{
				{Name: "id", Type: "integer", Primary: true},
				{Name: "analyzer_name", Type: "text"},
				{Name: "job", Type: "integer", ForeignKey: &schema.ForeignKey{ReferencesTable: "job", ReferencesColumn: "id"}},
			}, [][]string{{"analyzer_name", "job"}})),
		migration.New("analyzers_manager", "0007_analyzerreport_task_id", []migration.Key{key("analyzers_manager", "0001_initial")}),
		migration.New("analyzers_manager", "0008_auto_20210728_0922",
			[]migration.Key{
				key("api_app", "0008_remove_job_runtime_configuration"),
				key("analyzers_manager", "0007_analyzerreport_task_id"),
			},
			migration.RenameField("analyzerreport", "analyzer_name", "name"),
			migration.AlterUniqueTogether("analyzerreport", [][]string{{"name", "job"}})),
	}
}

func assertTopological(t *testing.T, g *Graph, order []migration.Key) {
	t.Helper()
	require.Len(t, order, g.Len())
	pos := map[migration.Key]int{}
	for i, k := range order {
		pos[k] = i
	}
	for _, k := range order {
		m, _ := g.Node(k)
		for _, d := range m.Dependencies() {
			assert.Less(t, pos[d], pos[k], "%s must come after %s", k, d)
		}
	}
}

func TestOrderIsTopological(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	order, err := g.Order()
	require.NoError(t, err)
	assertTopological(t, g, order)
	assert.Equal(t, []migration.Key{
		key("api_app", "0001_initial"),
		key("analyzers_manager", "0001_initial"),
		key("analyzers_manager", "0007_analyzerreport_task_id"),
		key("api_app", "0008_remove_job_runtime_configuration"),
		key("analyzers_manager", "0008_auto_20210728_0922"),
	}, order)
}

func TestOrderRandomGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := 1 + rng.Intn(30)
		var migrations []*migration.Migration
		var keys []migration.Key
		for i := 0; i < n; i++ {
			k := key(fmt.Sprintf("app%d", rng.Intn(4)), fmt.Sprintf("%04d_m", i))
			var deps []migration.Key
			// Edges only point at earlier nodes, which keeps the graph acyclic.
			for _, prev := range keys {
				if rng.Intn(4) == 0 {
					deps = append(deps, prev)
				}
			}
			keys = append(keys, k)
			migrations = append(migrations, migration.New(k.App, k.Name, deps))
		}
		// Register in shuffled order; the result must not depend on it.
		rng.Shuffle(len(migrations), func(i, j int) { migrations[i], migrations[j] = migrations[j], migrations[i] })

		g := mustGraph(t, migrations...)
		order, err := g.Order()
		require.NoError(t, err)
		assertTopological(t, g, order)

		again, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, order, again)
	}
}

func TestOrderTieBreaksByName(t *testing.T) {
	g := mustGraph(t,
		migration.New("zeta", "0001_a", nil),
		migration.New("alpha", "0002_b", nil),
		migration.New("beta", "0001_a", nil),
	)

	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []migration.Key{
		key("beta", "0001_a"),
		key("zeta", "0001_a"),
		key("alpha", "0002_b"),
	}, order)
}

func TestOrderDetectsCycle(t *testing.T) {
	g := mustGraph(t,
		migration.New("a", "0001", []migration.Key{key("c", "0001")}),
		migration.New("b", "0001", []migration.Key{key("a", "0001")}),
		migration.New("c", "0001", []migration.Key{key("b", "0001")}),
		migration.New("d", "0001", []migration.Key{key("a", "0001")}),
		migration.New("e", "0001", nil),
	)

	_, err := g.Order()
	var cycleErr *DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []migration.Key{key("a", "0001"), key("c", "0001"), key("b", "0001")}, cycleErr.Cycle)
	assert.Equal(t, "dependency cycle: a.0001 -> c.0001 -> b.0001 -> a.0001", err.Error())
}

func TestOrderDetectsSelfDependency(t *testing.T) {
	g := mustGraph(t, migration.New("a", "0001", []migration.Key{key("a", "0001")}))

	_, err := g.Order()
	var cycleErr *DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []migration.Key{key("a", "0001")}, cycleErr.Cycle)
}

func TestNewGraphUnknownDependency(t *testing.T) {
	reg := migration.NewRegistry()
	require.NoError(t, reg.Register(migration.New("a", "0002", []migration.Key{key("a", "0001")})))

	_, err := NewGraph(reg)
	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, key("a", "0001"), notFound.Dependency)
}

func TestForwardsFromScratch(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	plan, err := Forwards(g, nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 5)
	assert.Empty(t, plan.Applied)
	assert.Empty(t, plan.State.Tables())

	final, ok := plan.Final().Model("analyzerreport")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "job"}, final.ColumnNames())
	assert.Equal(t, []string{"name", "job"}, final.Unique[0].Fields)

	last := plan.Steps[4]
	assert.Equal(t, key("analyzers_manager", "0008_auto_20210728_0922"), last.Key())
	require.Len(t, last.Snapshots, 3)
	before, _ := last.Before().Model("analyzerreport")
	assert.True(t, before.HasColumn("analyzer_name"))
}

func TestForwardsSkipsApplied(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)
	applied := map[migration.Key]bool{
		key("api_app", "0001_initial"):                          true,
		key("analyzers_manager", "0001_initial"):                true,
		key("analyzers_manager", "0007_analyzerreport_task_id"): true,
		key("api_app", "0008_remove_job_runtime_configuration"): true,
		key("legacy", "0001_gone"):                              true,
	}

	plan, err := Forwards(g, applied)
	require.NoError(t, err)
	assert.Equal(t, []migration.Key{key("analyzers_manager", "0008_auto_20210728_0922")}, plan.Keys())
	assert.Equal(t, []migration.Key{key("legacy", "0001_gone")}, plan.Unknown)
	assert.Equal(t, []string{"analyzerreport", "job"}, plan.State.Tables())

	applied[key("analyzers_manager", "0008_auto_20210728_0922")] = true
	plan, err = Forwards(g, applied)
	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
}

func TestForwardsWithTarget(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	plan, err := Forwards(g, nil, key("analyzers_manager", "0001_initial"))
	require.NoError(t, err)
	assert.Equal(t, []migration.Key{
		key("api_app", "0001_initial"),
		key("analyzers_manager", "0001_initial"),
	}, plan.Keys())

	_, err = Forwards(g, nil, key("nope", "0001"))
	var notFound *NodeNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestForwardsRejectsCycleBeforeSimulating(t *testing.T) {
	g := mustGraph(t,
		migration.New("a", "0001", []migration.Key{key("b", "0001")}, migration.RenameField("missing", "x", "y")),
		migration.New("b", "0001", []migration.Key{key("a", "0001")}),
	)

	plan, err := Forwards(g, nil)
	assert.Nil(t, plan)
	var cycleErr *DependencyCycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestForwardsInconsistentHistory(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	_, err := Forwards(g, map[migration.Key]bool{
		key("analyzers_manager", "0001_initial"): true,
	})
	var inconsistent *InconsistentHistoryError
	require.ErrorAs(t, err, &inconsistent)
	assert.Equal(t, key("api_app", "0001_initial"), inconsistent.Dependency)
}

func TestForwardsReportsUnmetPrecondition(t *testing.T) {
	history := analyzerHistory()
	history = append(history, migration.New("analyzers_manager", "0009_again",
		[]migration.Key{key("analyzers_manager", "0008_auto_20210728_0922")},
		migration.RenameField("analyzerreport", "analyzer_name", "title")))
	g := mustGraph(t, history...)

	plan, err := Forwards(g, nil)
	assert.Nil(t, plan)

	var opErr *migration.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, key("analyzers_manager", "0009_again"), opErr.Migration)
	var schemaErr *schema.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "analyzer_name", schemaErr.Field)
}

func TestBackwards(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)
	order, err := g.Order()
	require.NoError(t, err)

	// Most recent first.
	appliedOrder := make([]migration.Key, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		appliedOrder = append(appliedOrder, order[i])
	}

	plan, err := Backwards(g, appliedOrder, 1)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	step := plan.Steps[0]
	assert.Equal(t, key("analyzers_manager", "0008_auto_20210728_0922"), step.Key())
	before, _ := step.Before().Model("analyzerreport")
	after, _ := step.After().Model("analyzerreport")
	assert.True(t, before.HasColumn("analyzer_name"))
	assert.True(t, after.HasColumn("name"))

	plan, err = Backwards(g, appliedOrder, 10)
	require.NoError(t, err)
	assert.Equal(t, appliedOrder, plan.Keys())
}

func TestBackwardsBlockedByDependant(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	// api_app.0008 was applied last but analyzers_manager.0008 depends on it.
	appliedOrder := []migration.Key{
		key("api_app", "0008_remove_job_runtime_configuration"),
		key("analyzers_manager", "0008_auto_20210728_0922"),
		key("analyzers_manager", "0007_analyzerreport_task_id"),
		key("analyzers_manager", "0001_initial"),
		key("api_app", "0001_initial"),
	}
	_, err := Backwards(g, appliedOrder, 1)
	var blocked *BlockedRollbackError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, key("analyzers_manager", "0008_auto_20210728_0922"), blocked.Dependant)
}

func TestStateReplaysApplied(t *testing.T) {
	g := mustGraph(t, analyzerHistory()...)

	state, err := State(g, map[migration.Key]bool{key("api_app", "0001_initial"): true})
	require.NoError(t, err)
	assert.Equal(t, []string{"job"}, state.Tables())
}
