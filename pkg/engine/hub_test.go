package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronebridge/pkg/telemetry"
)

type fakeSubscriber struct {
	id       string
	sendable bool

	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func newFake(id string) *fakeSubscriber {
	return &fakeSubscriber{id: id, sendable: true}
}

func (f *fakeSubscriber) ID() string { return f.id }

func (f *fakeSubscriber) TrySend(msg []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sendable || f.closed {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeSubscriber) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSubscriber) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.msgs...)
}

func (f *fakeSubscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func startHub(t *testing.T, opts ...Option) (*Hub, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(opts...)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	hub, _ := startHub(t)

	assert.NotPanics(t, func() {
		hub.Broadcast(telemetry.MissionCount{Count: 1})
	})
	require.Eventually(t, func() bool { return hub.Stats().Broadcasts == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.Len())
}

func TestBroadcastBeforeRunDoesNotBlock(t *testing.T) {
	hub := NewHub(WithBroadcastBuffer(1))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Broadcast(telemetry.MissionCurrent{Seq: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked without a running hub")
	}
	assert.Equal(t, uint64(9), hub.Stats().Dropped)
}

func TestLeaveUnknownSubscriberIsNoop(t *testing.T) {
	hub, _ := startHub(t)
	a := newFake("a")
	hub.Join(a)

	hub.Leave(newFake("ghost"))
	hub.Leave(newFake("ghost"))

	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, uint64(0), hub.Stats().Leaves)

	hub.Leave(a)
	hub.Leave(a)
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, uint64(1), hub.Stats().Leaves)
}

func TestJoinTwiceKeepsOneMembership(t *testing.T) {
	hub, _ := startHub(t)
	a := newFake("a")
	hub.Join(a)
	hub.Join(a)
	assert.Equal(t, 1, hub.Len())
}

func TestBroadcastSkipsUnsendableSubscriber(t *testing.T) {
	hub, _ := startHub(t)
	good := newFake("good")
	stuck := newFake("stuck")
	stuck.sendable = false
	hub.Join(good)
	hub.Join(stuck)

	hub.Broadcast(telemetry.StatusText{Severity: 6, Text: "Landing"})

	require.Eventually(t, func() bool { return len(good.received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"type":"status_text","severity":6,"text":"Landing"}`, string(good.received()[0]))
	assert.Empty(t, stuck.received())
	require.Eventually(t, func() bool { return hub.Stats().Skipped == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, hub.Len())
}

func TestGreetingGoesOnlyToJoiner(t *testing.T) {
	greeting := func() []telemetry.Event {
		return []telemetry.Event{
			telemetry.Waypoint{Seq: 0, Lat: 13.05, Lon: 80.2824, Alt: 50, Command: 16},
			telemetry.MissionCount{Count: 1},
		}
	}
	hub, _ := startHub(t, WithGreeting(greeting))

	first := newFake("first")
	hub.Join(first)
	second := newFake("second")
	hub.Join(second)

	require.Eventually(t, func() bool { return len(second.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, first.received(), 2)

	var m map[string]any
	require.NoError(t, json.Unmarshal(second.received()[1], &m))
	assert.Equal(t, "mission_count", m["type"])
}

func TestShutdownClosesSubscribers(t *testing.T) {
	hub, cancel := startHub(t)
	a := newFake("a")
	hub.Join(a)
	tap := hub.Subscribe()

	cancel()
	<-hub.Done()

	assert.True(t, a.isClosed())
	_, ok := <-tap
	assert.False(t, ok)

	late := newFake("late")
	hub.Join(late)
	assert.True(t, late.isClosed())
	assert.Equal(t, 0, hub.Len())
}

func TestTapReceivesEvents(t *testing.T) {
	hub, _ := startHub(t)
	tap := hub.Subscribe()

	hub.Broadcast(telemetry.FlightTime{Seconds: 3})

	select {
	case ev := <-tap:
		assert.Equal(t, telemetry.FlightTime{Seconds: 3}, ev)
	case <-time.After(time.Second):
		t.Fatal("tap did not receive event")
	}

	hub.Unsubscribe(tap)
	_, ok := <-tap
	assert.False(t, ok)
}

func TestHubDoesNotBlockOnSlowTap(t *testing.T) {
	hub, _ := startHub(t, WithTapBuffer(1))
	slow := hub.Subscribe()
	fast := newFake("fast")
	hub.Join(fast)

	for i := 0; i < 50; i++ {
		hub.Broadcast(telemetry.MissionCurrent{Seq: i})
		time.Sleep(time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(fast.received()) == 50 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, slow, 1)
}

func TestConcurrentMembershipChanges(t *testing.T) {
	hub, _ := startHub(t, WithBroadcastBuffer(1024))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := newFake(fmt.Sprintf("s%d-%d", i, j))
				hub.Join(sub)
				hub.Broadcast(telemetry.MissionCurrent{Seq: j})
				hub.Leave(sub)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Len())
	stats := hub.Stats()
	assert.Equal(t, uint64(400), stats.Joins)
	assert.Equal(t, uint64(400), stats.Leaves)
}
