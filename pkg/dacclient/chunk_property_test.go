//go:build property
// +build property

package dacclient_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/overture-stack/dac-permissions-reconciler/pkg/dacclient"
)

// TestChunk_NeverExceedsMaxBatch checks the chunking contract: no chunk
// produced by Chunk ever exceeds the configured size, and every input
// item appears in exactly one chunk, in order.
func TestChunk_NeverExceedsMaxBatch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no chunk exceeds size and every item is preserved in order", prop.ForAll(
		func(n, size int) bool {
			if size <= 0 {
				size = 1
			}
			items := make([]int, n)
			for i := range items {
				items[i] = i
			}

			chunks := dacclient.Chunk(items, size)

			var reassembled []int
			for _, c := range chunks {
				if len(c) > size {
					return false
				}
				reassembled = append(reassembled, c...)
			}
			if len(reassembled) != len(items) {
				return false
			}
			for i := range items {
				if reassembled[i] != items[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 5000),
		gen.IntRange(1, 2000),
	))

	properties.TestingRun(t)
}
