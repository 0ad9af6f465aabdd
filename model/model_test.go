package model_test

import (
	"testing"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseData(t *testing.T) {
	raw := []byte(`{
		"application": "my-app-key",
		"signature_date": "2026-01-01T00:00:00Z",
		"targetGroups": [{"id": "tg1", "condition": "true"}],
		"experiments": [{
			"id": "exp1",
			"name": "demo",
			"archived": false,
			"stickinessProperty": "rox.distinct_id",
			"labels": ["l1"],
			"flags": ["demo.flag"],
			"condition": "true"
		}]
	}`)

	d, err := model.ParseData(raw)
	require.NoError(t, err)
	assert.Equal(t, "my-app-key", d.Application)

	groups := d.TargetGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "tg1", groups[0].ID)

	experiments := d.Experiments()
	require.Len(t, experiments, 1)
	assert.Equal(t, "exp1", experiments[0].ID)
	assert.Equal(t, []string{"demo.flag"}, experiments[0].FlagNames)
}

func TestRepositoryAtomicSwap(t *testing.T) {
	r := model.NewRepository(roxx.New())
	r.Apply(nil, []model.Experiment{{ID: "e1", FlagNames: []string{"f1"}, Condition: `"on"`}})

	assert.Len(t, r.ExperimentsForFlag("f1"), 1)
	assert.Len(t, r.ExperimentsForFlag("other"), 0)

	r.Apply(nil, []model.Experiment{{ID: "e2", FlagNames: []string{"f2"}, Condition: `"on"`}})
	assert.Len(t, r.ExperimentsForFlag("f1"), 0)
	assert.Len(t, r.ExperimentsForFlag("f2"), 1)
}

func TestArchivedExperimentsExcluded(t *testing.T) {
	r := model.NewRepository(roxx.New())
	r.Apply(nil, []model.Experiment{{ID: "e1", Archived: true, FlagNames: []string{"f1"}}})
	assert.Len(t, r.ExperimentsForFlag("f1"), 0)
}

func TestResolveTargetGroup(t *testing.T) {
	r := model.NewRepository(roxx.New())
	r.Apply([]model.TargetGroup{{ID: "tg1", Condition: `"country" property "US" eq`}}, nil)

	ctx := rcontext.New(map[string]dynamic.Value{"country": dynamic.String("US")})
	result, found := r.ResolveTargetGroup("tg1", ctx)
	assert.True(t, found)
	assert.True(t, result)

	_, found = r.ResolveTargetGroup("missing", ctx)
	assert.False(t, found)
}
