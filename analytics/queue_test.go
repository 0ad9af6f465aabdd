package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/rox/analytics"
)

func TestQueueStopFlushesBufferedEvents(t *testing.T) {
	shipper := analytics.NewMemoryShipper()
	q := analytics.NewQueue(shipper)

	q.Enqueue(analytics.NewEvent("f1", "true", "u1", "", time.Unix(0, 0)))
	q.Enqueue(analytics.NewEvent("f2", "false", "u2", "", time.Unix(0, 0)))

	q.Stop(context.Background())

	require.Len(t, shipper.Events(), 2)
}

func TestQueueDropsOldestOnOverflow(t *testing.T) {
	shipper := analytics.NewMemoryShipper()
	q := analytics.NewQueue(shipper, analytics.WithCapacity(2))

	q.Enqueue(analytics.NewEvent("oldest", "v", "u", "", time.Unix(0, 0)))
	q.Enqueue(analytics.NewEvent("middle", "v", "u", "", time.Unix(0, 0)))
	q.Enqueue(analytics.NewEvent("newest", "v", "u", "", time.Unix(0, 0)))

	q.Stop(context.Background())

	got := shipper.Events()
	require.Len(t, got, 2)
	require.Equal(t, "middle", got[0].Flag)
	require.Equal(t, "newest", got[1].Flag)
}

func TestQueueBackgroundLoopShipsWithoutExplicitStop(t *testing.T) {
	shipper := analytics.NewMemoryShipper()
	q := analytics.NewQueue(shipper, analytics.WithFlushInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(analytics.NewEvent("f1", "true", "u1", "", time.Unix(0, 0)))

	require.Eventually(t, func() bool {
		return len(shipper.Events()) == 1
	}, time.Second, 10*time.Millisecond)

	q.Stop(ctx)
}

func TestQueueBatchSizeLimitsOneShipCall(t *testing.T) {
	var calls []int
	shipper := analytics.ShipperFunc(func(ctx context.Context, events []analytics.Event) error {
		calls = append(calls, len(events))
		return nil
	})
	q := analytics.NewQueue(shipper, analytics.WithBatchSize(1), analytics.WithFlushInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	q.Enqueue(analytics.NewEvent("f1", "v", "u", "", time.Unix(0, 0)))
	q.Enqueue(analytics.NewEvent("f2", "v", "u", "", time.Unix(0, 0)))

	require.Eventually(t, func() bool {
		total := 0
		for _, n := range calls {
			total += n
		}
		return total == 2
	}, time.Second, 10*time.Millisecond)

	q.Stop(ctx)

	for _, n := range calls {
		require.LessOrEqual(t, n, 1)
	}
}
