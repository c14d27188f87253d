package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/YuminosukeSato/firehazard/pkg/errors"
)

func TestParallelize_CoversEveryItemOnce(t *testing.T) {
	for _, n := range []int{0, 1, 7, 1000} {
		hits := make([]int32, n)
		Parallelize(n, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "item %d of %d", i, n)
		}
	}
}

func TestParallelizeN_MoreWorkersThanItems(t *testing.T) {
	var calls int32
	ParallelizeN(3, 16, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 1, end-start)
	})
	assert.Equal(t, int32(3), calls)
}

func TestForEach_ReturnsFirstErrorByIndex(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := ForEach(10, func(i int) error {
		switch i {
		case 3:
			return errA
		case 8:
			return errB
		}
		return nil
	})
	assert.Equal(t, errA, err)
	assert.NoError(t, ForEach(5, func(int) error { return nil }))
}

func TestForEachN_RecoversPanic(t *testing.T) {
	err := ForEachN(4, 2, func(i int) error {
		if i == 2 {
			panic("bad cell")
		}
		return nil
	})
	var panicErr *fherrors.PanicError
	require.True(t, fherrors.As(err, &panicErr))
	assert.Equal(t, "bad cell", panicErr.PanicValue)
}
