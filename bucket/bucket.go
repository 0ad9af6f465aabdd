// Package bucket implements the deterministic weighted stickiness
// bucketer (spec §4.C6): given an experiment id, a stickiness key and a
// configuration-ordered {variant: weight} table, it picks the same
// variant label every time, in every language implementation, because
// the hash, endianness, modulus and walk order are all fixed by spec.
package bucket

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/alextanhongpin/rox/dynamic"
)

// Bucketer computes getBucket decisions. It carries no state; every
// call is a pure function of its arguments.
type Bucketer struct{}

// New returns a Bucketer.
func New() *Bucketer {
	return &Bucketer{}
}

// Bucket walks weights in configuration (insertion) order and returns
// the first label whose cumulative weight exceeds u, where u is derived
// from MD5(experimentID + "." + stickinessKey) (spec §4.C6). ok is false
// when weights is empty or nil.
func (b *Bucketer) Bucket(experimentID, stickinessKey string, weights dynamic.Map) (string, bool) {
	if weights == nil || weights.Len() == 0 {
		return "", false
	}

	u := unitInterval(experimentID, stickinessKey)

	var cumulative float64
	for pair := weights.Oldest(); pair != nil; pair = pair.Next() {
		weight, ok := pair.Value.AsDouble()
		if !ok {
			continue
		}
		cumulative += weight
		if cumulative > u {
			return pair.Key, true
		}
	}

	// Floating point rounding can leave the cumulative sum a hair under
	// 1.0 even when weights are authored to sum to exactly 1.0; fall
	// back to the last variant rather than reporting no match.
	last := weights.Newest()
	if last == nil {
		return "", false
	}
	return last.Key, true
}

// unitInterval computes u = (h mod 10000) / 10000.0, where h is the
// first 4 bytes of MD5(experimentID + "." + key) read big-endian as a
// 32-bit unsigned integer. This must stay byte-identical across every
// language implementation of the engine.
func unitInterval(experimentID, key string) float64 {
	sum := md5.Sum([]byte(experimentID + "." + key))
	h := binary.BigEndian.Uint32(sum[:4])
	return float64(h%10000) / 10000.0
}
