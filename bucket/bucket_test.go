package bucket_test

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/alextanhongpin/rox/bucket"
	"github.com/alextanhongpin/rox/dynamic"
	"github.com/stretchr/testify/assert"
)

func weights(pairs ...struct {
	Label  string
	Weight float64
}) dynamic.Map {
	m := dynamic.NewMap()
	for _, p := range pairs {
		m.Set(p.Label, dynamic.Double(p.Weight))
	}
	return m
}

func TestBucketDeterministic(t *testing.T) {
	b := bucket.New()
	w := dynamic.NewMap()
	w.Set("A", dynamic.Double(0.5))
	w.Set("B", dynamic.Double(0.5))

	label1, ok1 := b.Bucket("exp1", "user-42", w)
	label2, ok2 := b.Bucket("exp1", "user-42", w)

	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, label1, label2)
}

func TestBucketKnownHash(t *testing.T) {
	// Independently computed reference value: the bucketer's u must match
	// MD5("exp1.user-42")'s first 4 bytes mod 10000 / 10000, since the
	// algorithm is specified to be byte-identical across implementations.
	sum := md5.Sum([]byte("exp1.user-42"))
	h := binary.BigEndian.Uint32(sum[:4])
	wantU := float64(h%10000) / 10000.0

	b := bucket.New()
	w := dynamic.NewMap()
	w.Set("A", dynamic.Double(wantU/2))
	w.Set("B", dynamic.Double(1 - wantU/2))

	label, ok := b.Bucket("exp1", "user-42", w)
	assert.True(t, ok)
	assert.Equal(t, "B", label)
}

func TestBucketDistributionWithinTolerance(t *testing.T) {
	b := bucket.New()
	w := dynamic.NewMap()
	w.Set("A", dynamic.Double(0.5))
	w.Set("B", dynamic.Double(0.5))

	counts := map[string]int{}
	const n = 100_000
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("user-%d", i)
		label, ok := b.Bucket("exp-distribution", key, w)
		assert.True(t, ok)
		counts[label]++
	}

	for _, label := range []string{"A", "B"} {
		frac := float64(counts[label]) / float64(n)
		assert.InDelta(t, 0.5, frac, 0.01)
	}
}

func TestBucketEmptyWeights(t *testing.T) {
	b := bucket.New()
	_, ok := b.Bucket("exp1", "user-1", dynamic.NewMap())
	assert.False(t, ok)

	_, ok = b.Bucket("exp1", "user-1", nil)
	assert.False(t, ok)
}

func TestBucketOrderMatters(t *testing.T) {
	b := bucket.New()

	ab := dynamic.NewMap()
	ab.Set("A", dynamic.Double(0.3))
	ab.Set("B", dynamic.Double(0.7))

	ba := dynamic.NewMap()
	ba.Set("B", dynamic.Double(0.7))
	ba.Set("A", dynamic.Double(0.3))

	l1, _ := b.Bucket("exp-order", "key-c", ab)
	l2, _ := b.Bucket("exp-order", "key-c", ba)

	// Cumulative-sum walk order is config order, so differently-ordered
	// tables select different labels for this key (its bucket is ~0.19:
	// inside A's 0.3 in the first table, inside B's 0.7 in the second).
	assert.NotEqual(t, l1, l2)
}
