package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePlanFullFile(t *testing.T) {
	plan, err := ComputePlan(3_000_000, 0, 2_999_999)
	require.NoError(t, err)

	assert.Equal(t, int64(0), plan.AlignedOffset)
	assert.Equal(t, int64(0), plan.FirstCut)
	assert.Equal(t, int64(3), plan.PartCount)
	assert.Equal(t, int64(3_000_000), plan.RequestedLength)
}

func TestComputePlanUnalignedTailRange(t *testing.T) {
	plan, err := ComputePlan(3_000_000, 1_500_000, 2_500_000)
	require.NoError(t, err)

	assert.Equal(t, int64(1_048_576), plan.AlignedOffset)
	assert.Equal(t, int64(451_424), plan.FirstCut)
	assert.Equal(t, int64(2_500_000%1_048_576+1), plan.LastCut)
	assert.Equal(t, int64(2), plan.PartCount)
	assert.Equal(t, int64(1_000_001), plan.RequestedLength)
}

func TestComputePlanTinyInteriorRange(t *testing.T) {
	plan, err := ComputePlan(3_000_000, 100, 200)
	require.NoError(t, err)

	assert.Equal(t, int64(0), plan.AlignedOffset)
	assert.Equal(t, int64(100), plan.FirstCut)
	assert.Equal(t, int64(201), plan.LastCut)
	assert.Equal(t, int64(1), plan.PartCount)
	assert.Equal(t, int64(101), plan.RequestedLength)
}

func TestComputePlanUnsatisfiable(t *testing.T) {
	cases := []struct {
		name       string
		size       int64
		start, end int64
	}{
		{"start past size", 1000, 2000, 3000},
		{"start negative", 1000, -1, 10},
		{"end past size", 1000, 0, 1000},
		{"end before start", 1000, 500, 400},
		{"start equals size", 1000, 1000, 1000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputePlan(tc.size, tc.start, tc.end)
			assert.ErrorIs(t, err, ErrRangeUnsatisfiable)
		})
	}
}

func TestComputePlanInvariants(t *testing.T) {
	sizes := []int64{1, 4096, 4097, 1_048_576, 1_048_577, 3_000_000, 10_485_760}
	for _, size := range sizes {
		for _, start := range []int64{0, 1, 4095, 4096, size / 2, size - 1} {
			for _, end := range []int64{start, start + 100, size - 1} {
				if start < 0 || start >= size || end >= size || end < start {
					continue
				}
				plan, err := ComputePlan(size, start, end)
				require.NoError(t, err)

				assert.Zero(t, plan.AlignedOffset%4096, "aligned offset must be 4096-aligned")
				assert.Zero(t, plan.ChunkSize%4096)
				assert.LessOrEqual(t, plan.ChunkSize, int64(1024*1024))

				// The trimmed parts must add up to the requested length.
				var total int64
				for part := int64(1); part <= plan.PartCount; part++ {
					partLen := plan.ChunkSize
					if part == plan.PartCount {
						partLen = end + 1 - (plan.AlignedOffset + (part-1)*plan.ChunkSize)
					}
					cutFront := int64(0)
					if part == 1 {
						cutFront = plan.FirstCut
					}
					total += partLen - cutFront
				}
				assert.Equal(t, plan.RequestedLength, total,
					"size=%d start=%d end=%d", size, start, end)
			}
		}
	}
}
