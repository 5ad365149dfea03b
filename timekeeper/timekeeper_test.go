package timekeeper

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/soygw/softgw/arpcache"
	"github.com/soygw/softgw/nat"
)

func TestTimekeeperDrivesARPRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	arp := arpcache.New(clock)
	natTable := nat.New(clock, nat.DefaultConfig())

	var retryCount int
	tk := New(clock, arp, natTable, func(r arpcache.TickResult) {
		retryCount += len(r.Retries)
	}, nil)

	req, created := arp.Queue([4]byte{10, 0, 0, 254}, []byte("frame"), "eth0")
	if !created {
		t.Fatal("expected new request")
	}
	arp.MarkSent(req)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	// BlockUntil ensures the ticker goroutine has registered its waiter
	// before advancing the fake clock, avoiding a flaky race.
	clock.BlockUntil(1)
	clock.Advance(TickInterval)
	// Allow the tick to run before asserting.
	time.Sleep(10 * time.Millisecond)

	cancel()
	<-done

	if retryCount == 0 {
		t.Fatal("expected at least one ARP retry to have been observed")
	}
}
