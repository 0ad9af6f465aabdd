package flag_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/rox/bucket"
	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/flag"
	"github.com/alextanhongpin/rox/freeze"
	"github.com/alextanhongpin/rox/model"
	"github.com/alextanhongpin/rox/override"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
	"github.com/alextanhongpin/rox/roxx"
)

// noopEntry is a storage.Entry that never persists, sufficient for
// wiring an override.Repository in tests that don't exercise restarts.
type noopEntry struct{}

func (noopEntry) Read(context.Context) (string, bool, error) { return "", false, nil }
func (noopEntry) Write(context.Context, string) error        { return nil }
func (noopEntry) Delete(context.Context) error                { return nil }

func newFixture(opts ...flag.Option) (*flag.Repository, *model.Repository, *roxx.Evaluator, *override.Repository) {
	evaluator := roxx.New()
	models := model.NewRepository(evaluator)
	ov := override.New(noopEntry{})
	r := flag.NewRepository(models, evaluator, property.NewRepository(), ov, opts...)
	return r, models, evaluator, ov
}

func TestRegisterIsIdempotent(t *testing.T) {
	r, _, _, _ := newFixture()
	f1, err := r.Register("ns.flag", flag.TypeBool, "false", nil)
	require.NoError(t, err)
	f2, err := r.Register("ns.flag", flag.TypeBool, "true", nil)
	require.NoError(t, err)
	assert.Same(t, f1, f2)
	assert.Equal(t, "false", f1.DefaultValue())
}

func TestRegisterRejectsDefaultOutsideOptions(t *testing.T) {
	r, _, _, _ := newFixture()
	_, err := r.Register("flag.a", flag.TypeString, "z", []string{"a", "b"})
	assert.Error(t, err)
}

func TestNamespaceLookup(t *testing.T) {
	r, _, _, _ := newFixture()
	_, err := r.Register("checkout.enabled", flag.TypeBool, "false", nil)
	require.NoError(t, err)
	_, err = r.Register("checkout.limit", flag.TypeInt, "10", nil)
	require.NoError(t, err)
	_, err = r.Register("other.flag", flag.TypeBool, "false", nil)
	require.NoError(t, err)

	assert.Len(t, r.Namespace("checkout"), 2)
}

func TestDefaultValueWhenNoExperimentBound(t *testing.T) {
	r, _, _, _ := newFixture()
	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)

	rv := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "control", rv.Value)
	assert.False(t, rv.Targeting)
}

func TestExperimentOverridesDefaultWhenInOptions(t *testing.T) {
	r, models, _, _ := newFixture()
	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)

	models.Apply(nil, []model.Experiment{{
		ID:        "exp1",
		FlagNames: []string{"flag.a"},
		Condition: `"treatment"`,
	}})

	rv := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "treatment", rv.Value)
	assert.True(t, rv.Targeting)
}

func TestExperimentResultOutsideOptionsFallsBackToDefault(t *testing.T) {
	r, models, _, _ := newFixture()
	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)

	models.Apply(nil, []model.Experiment{{
		ID:        "exp1",
		FlagNames: []string{"flag.a"},
		Condition: `"not-an-option"`,
	}})

	rv := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "control", rv.Value)
	assert.False(t, rv.Targeting)
}

func TestOverrideTakesPrecedenceAndSkipsImpression(t *testing.T) {
	impressions := 0
	r, _, _, ov := newFixture(flag.WithImpressionHandler(func(flag.ReportingValue, *rcontext.Context) { impressions++ }))

	f, err := r.Register("flag.a", flag.TypeBool, "false", nil)
	require.NoError(t, err)
	require.NoError(t, ov.Set(context.Background(), "flag.a", "true"))

	rv := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "true", rv.Value)
	assert.False(t, rv.Targeting)
	assert.Equal(t, 0, impressions)
}

func TestFreezePinsFirstDecision(t *testing.T) {
	r, models, _, _ := newFixture()
	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)
	f.Freeze(freeze.UntilLaunch)

	models.Apply(nil, []model.Experiment{{ID: "exp1", FlagNames: []string{"flag.a"}, Condition: `"treatment"`}})
	first := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "treatment", first.Value)

	models.Apply(nil, []model.Experiment{{ID: "exp1", FlagNames: []string{"flag.a"}, Condition: `"control"`}})
	second := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "treatment", second.Value, "frozen decision should survive a re-fetch")

	f.Unfreeze()
	third := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "control", third.Value)
}

func TestPeekCurrentValueBypassesOverrideAndFreezeAndDoesNotEmit(t *testing.T) {
	impressions := 0
	r, models, _, ov := newFixture(flag.WithImpressionHandler(func(flag.ReportingValue, *rcontext.Context) { impressions++ }))

	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)
	require.NoError(t, ov.Set(context.Background(), "flag.a", "override-value"))

	models.Apply(nil, []model.Experiment{{ID: "exp1", FlagNames: []string{"flag.a"}, Condition: `"treatment"`}})

	value, targeting := r.PeekCurrentValue(f, rcontext.Empty())
	assert.Equal(t, "treatment", value)
	assert.True(t, targeting)
	assert.Equal(t, 0, impressions)
}

func TestGetBucketOperatorConsultedDuringExperimentEvaluation(t *testing.T) {
	evaluator := roxx.New()
	models := model.NewRepository(evaluator)
	ov := override.New(noopEntry{})
	r := flag.NewRepository(models, evaluator, property.NewRepository(), ov, flag.WithBucketer(bucket.New()))

	weights := dynamic.NewMap()
	weights.Set("control", dynamic.Double(0.5))
	weights.Set("treatment", dynamic.Double(0.5))
	evaluator.RegisterOperator("pushWeights", func(_ *roxx.EvaluationContext, s roxx.Stack) {
		s.Push(dynamic.MapValue(weights))
	})

	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)

	models.Apply(nil, []model.Experiment{{
		ID:                     "exp1",
		FlagNames:              []string{"flag.a"},
		StickinessPropertyName: "rox.distinct_id",
		Condition:              `"rox.distinct_id" property pushWeights getBucket`,
	}})

	ctx := rcontext.New(map[string]dynamic.Value{"rox.distinct_id": dynamic.String("user-1")})
	rv := r.GetValue(f, ctx)
	assert.Contains(t, []string{"control", "treatment"}, rv.Value)
	assert.True(t, rv.Targeting)
}

func TestParseConversions(t *testing.T) {
	assert.True(t, flag.ParseBool("true", false))
	assert.False(t, flag.ParseBool("garbage", false))
	assert.Equal(t, 42, flag.ParseInt("42", 0))
	assert.Equal(t, 7, flag.ParseInt("nope", 7))
	assert.Equal(t, 1.5, flag.ParseDouble("1.5", 0))
	assert.Equal(t, 2.0, flag.ParseDouble("nope", 2.0))
}

func TestWithClockPinsNowOperator(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, models, _, _ := newFixture(flag.WithClock(func() time.Time { return fixed }))

	f, err := r.Register("flag.a", flag.TypeString, "control", []string{"control", "treatment"})
	require.NoError(t, err)

	models.Apply(nil, []model.Experiment{{
		ID:        "exp1",
		FlagNames: []string{"flag.a"},
		Condition: `now 1767225600 eq "treatment" "control" ifThen`,
	}})

	rv := r.GetValue(f, rcontext.Empty())
	assert.Equal(t, "treatment", rv.Value)
}
