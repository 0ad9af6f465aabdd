package property_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alextanhongpin/rox/dynamic"
	"github.com/alextanhongpin/rox/property"
	"github.com/alextanhongpin/rox/rcontext"
)

func TestLiteralStringResolves(t *testing.T) {
	p := property.LiteralString("country", "SG")
	v := p.Resolve(rcontext.Empty())

	s, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "SG", s)
}

func TestComputedReEvaluatesPerContext(t *testing.T) {
	p := property.Computed("greeting", property.String, func(ctx *rcontext.Context) dynamic.Value {
		name, _ := ctx.GetOrUndefined("name").AsString()
		return dynamic.String("hello " + name)
	})

	ctx := rcontext.New(map[string]dynamic.Value{"name": dynamic.String("alice")})
	v := p.Resolve(ctx)

	s, ok := v.AsString()
	assert.True(t, ok)
	assert.Equal(t, "hello alice", s)
}

func TestIsReserved(t *testing.T) {
	assert.True(t, property.IsReserved("rox.distinct_id"))
	assert.False(t, property.IsReserved("country"))
}

func TestRepositoryAddOverwritesByName(t *testing.T) {
	r := property.NewRepository()
	r.Add(property.LiteralString("country", "SG"))
	r.Add(property.LiteralString("country", "MY"))

	p, ok := r.Get("country")
	assert.True(t, ok)

	v := p.Resolve(rcontext.Empty())
	s, _ := v.AsString()
	assert.Equal(t, "MY", s)
}

func TestRepositoryAddIfAbsentKeepsFirst(t *testing.T) {
	r := property.NewRepository()
	assert.True(t, r.AddIfAbsent(property.LiteralString("country", "SG")))
	assert.False(t, r.AddIfAbsent(property.LiteralString("country", "MY")))

	p, ok := r.Get("country")
	assert.True(t, ok)

	v := p.Resolve(rcontext.Empty())
	s, _ := v.AsString()
	assert.Equal(t, "SG", s)
}

func TestRepositoryOnAddedNotifiesListener(t *testing.T) {
	r := property.NewRepository()

	var seen []string
	r.OnAdded(func(p property.Property) { seen = append(seen, p.Name) })

	r.Add(property.LiteralString("a", "1"))
	r.AddIfAbsent(property.LiteralString("b", "2"))
	r.AddIfAbsent(property.LiteralString("b", "3"))

	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestRepositoryNames(t *testing.T) {
	r := property.NewRepository()
	r.Add(property.LiteralString("a", "1"))
	r.Add(property.LiteralString("b", "2"))

	assert.ElementsMatch(t, []string{"a", "b"}, r.Names())
}
