package nodeprops

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/go-nodeprops/common/types"
	"github.com/spacemeshos/go-nodeprops/nodeprops/mocks"
)

const (
	testWindow = 200 * time.Millisecond
	local      = types.NodeID("local")
	nodeA      = types.NodeID("node-a")
	nodeB      = types.NodeID("node-b")
)

type fakeClock interface {
	clockwork.Clock
	Advance(time.Duration)
	BlockUntil(int)
}

type tester struct {
	*Service
	clock fakeClock
}

func newTester(tb testing.TB, opts ...Opt) *tester {
	clock := clockwork.NewFakeClockAt(time.Unix(100, 0))
	cfg := DefaultConfig()
	cfg.AggregationWindow = testWindow
	svc := New(local, append([]Opt{
		WithLogger(zaptest.NewLogger(tb)),
		WithConfig(cfg),
		withClock(clock),
	}, opts...)...)
	tb.Cleanup(svc.Close)
	return &tester{Service: svc, clock: clock}
}

// flush advances the clock over the aggregation window.
func (t *tester) flush() {
	t.clock.Advance(testWindow)
}

func (t *tester) reachable(now []types.NodeID, added, removed []types.NodeID) {
	t.OnReachableNodesChanged(now, added, removed)
}

type collector struct {
	mu   sync.Mutex
	sets []ChangeSet
}

func (c *collector) handle(cs ChangeSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, cs)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// wait returns the n-th change set (counting from 1) once it is delivered.
func (c *collector) wait(tb testing.TB, n int) ChangeSet {
	tb.Helper()
	require.Eventually(tb, func() bool { return c.count() >= n }, time.Second, time.Millisecond,
		"expected %d change sets", n)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[n-1]
}

func subscribe(tb testing.TB, svc *tester) *collector {
	c := &collector{}
	svc.AddNodePropertiesChangeListener(c.handle)
	c.wait(tb, 1)
	return c
}

func value(v string) *string {
	return &v
}

func TestScenarios(t *testing.T) {
	svc := newTester(t)
	c := subscribe(t, svc)

	// A: a node becomes reachable and publishes a property
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "x", "1", 1)})
	svc.flush()
	cs := c.wait(t, 2)
	require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "x", "1", 1)}, cs.Added)
	require.Empty(t, cs.Updated)
	require.Empty(t, cs.Removed)
	require.Equal(t, map[types.NodeID]map[string]string{nodeA: {"x": "1"}}, cs.NodeMaps)

	// B: the property is deleted
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewTombstone(nodeA, "x", 2)})
	svc.flush()
	cs = c.wait(t, 3)
	require.Empty(t, cs.Added)
	require.Empty(t, cs.Updated)
	require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "x", "1", 1)}, cs.Removed)
	require.Empty(t, svc.GetNodeProperties(nodeA))
	require.Equal(t, map[types.NodeID]map[string]string{nodeA: {}}, cs.NodeMaps)

	// C: a stale update is ignored
	accepted := svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "x", "3", 1)})
	require.Empty(t, accepted)
	require.Empty(t, svc.GetNodeProperties(nodeA))
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "marker", "m", 1)})
	svc.flush()
	cs = c.wait(t, 4)
	require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "marker", "m", 1)}, cs.Added)
	require.Empty(t, cs.Updated)
	require.Empty(t, cs.Removed)
	require.Equal(t, 4, c.count())
}

func TestScenarioDisconnectReconnect(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA, nodeB}, []types.NodeID{nodeA, nodeB}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty(nodeA, "x", "a", 1),
		types.NewProperty(nodeB, "x", "b", 1),
		types.NewProperty(nodeB, "y", "b", 1),
		types.NewTombstone(nodeB, "z", 1),
	})
	c := subscribe(t, svc)
	require.Len(t, c.wait(t, 1).Added, 3)

	svc.reachable([]types.NodeID{nodeA}, nil, []types.NodeID{nodeB})
	svc.flush()
	cs := c.wait(t, 2)
	require.Empty(t, cs.Added)
	require.Equal(t, []types.NodeProperty{
		types.NewProperty(nodeB, "x", "b", 1),
		types.NewProperty(nodeB, "y", "b", 1),
	}, cs.Removed)
	require.Contains(t, cs.NodeMaps, nodeB)
	require.Nil(t, cs.NodeMaps[nodeB])
	require.NotContains(t, svc.GetAllNodeProperties(), nodeB)
	require.Equal(t, map[string]string{"x": "b", "y": "b"}, svc.GetNodeProperties(nodeB))

	svc.reachable([]types.NodeID{nodeA, nodeB}, []types.NodeID{nodeB}, nil)
	svc.flush()
	cs = c.wait(t, 3)
	require.Equal(t, []types.NodeProperty{
		types.NewProperty(nodeB, "x", "b", 1),
		types.NewProperty(nodeB, "y", "b", 1),
	}, cs.Added)
	require.Empty(t, cs.Removed)
	require.Equal(t, map[string]string{"x": "b", "y": "b"}, cs.NodeMaps[nodeB])
	require.Equal(t, map[string]string{"x": "b", "y": "b"}, svc.GetAllNodeProperties()[nodeB])
}

func TestUnreachableNodeWithoutProperties(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	c := subscribe(t, svc)

	svc.reachable(nil, nil, []types.NodeID{nodeA})
	svc.flush()
	cs := c.wait(t, 2)
	require.Empty(t, cs.Added)
	require.Empty(t, cs.Removed)
	require.False(t, cs.Empty())
	require.Equal(t, map[types.NodeID]map[string]string{nodeA: nil}, cs.NodeMaps)

	// a node without properties that joins, or leaves and comes back, changes nothing visible
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.reachable(nil, nil, []types.NodeID{nodeA})
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.flush()
	require.Never(t, func() bool { return c.count() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestNodeMapsMatchChangeSet(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	c := subscribe(t, svc)

	const last = 300
	done := make(chan struct{})
	go func() {
		defer close(done)
		for rev := uint64(1); rev <= last; rev++ {
			svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
				types.NewProperty(nodeA, "k", fmt.Sprint(rev), rev),
			})
		}
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		svc.flush()
	}
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		latest := c.sets[len(c.sets)-1]
		return latest.NodeMaps[nodeA]["k"] == fmt.Sprint(last)
	}, time.Second, time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cs := range c.sets[1:] {
		for _, p := range slices.Concat(cs.Added, cs.Updated) {
			require.Equal(t, p.Value, cs.NodeMaps[p.Owner][p.Key], "node map of %s", p)
		}
	}
}

func TestKnownNodes(t *testing.T) {
	svc := newTester(t)
	require.Empty(t, svc.KnownNodes())
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty(nodeB, "x", "1", 1),
		types.NewTombstone(nodeA, "x", 1),
	})
	require.Equal(t, []types.NodeID{nodeA, nodeB}, svc.KnownNodes(), "known regardless of reachability")
	require.NotContains(t, svc.GetAllNodeProperties(), nodeB)
}

func TestTombstoneNotVisible(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	for _, key := range []string{"a", "b", "c"} {
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
			types.NewProperty(nodeA, key, "v", 1),
			types.NewTombstone(nodeA, key, 2),
		})
	}
	require.Empty(t, svc.GetNodeProperties(nodeA))
	require.NotContains(t, svc.GetAllNodeProperties(), nodeA)
}

func TestUnreachableHidesWithoutDestroying(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "v", 1)})
	require.Equal(t, map[string]string{"k": "v"}, svc.GetAllNodeProperties()[nodeA])

	svc.reachable(nil, nil, []types.NodeID{nodeA})
	require.NotContains(t, svc.GetAllNodeProperties(), nodeA)
	require.Empty(t, svc.GetAllNodePropertiesFor([]types.NodeID{nodeA}))

	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	require.Equal(t, map[string]string{"k": "v"}, svc.GetNodeProperties(nodeA))
	require.Equal(t,
		map[types.NodeID]map[string]string{nodeA: {"k": "v"}},
		svc.GetAllNodePropertiesFor([]types.NodeID{nodeA, nodeB}),
	)
}

func TestUnreachableUpdatesAreStored(t *testing.T) {
	svc := newTester(t)
	c := subscribe(t, svc)
	raw := make(chan []types.NodeProperty, 1)
	svc.AddRawNodePropertiesChangeListener(func(records []types.NodeProperty) { raw <- records })

	p := types.NewProperty(nodeA, "k", "v", 1)
	require.Equal(t, []types.NodeProperty{p}, svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{p}))
	require.Equal(t, []types.NodeProperty{p}, <-raw)
	require.NotContains(t, svc.GetAllNodeProperties(), nodeA)

	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.flush()
	cs := c.wait(t, 2)
	require.Equal(t, []types.NodeProperty{p}, cs.Added)
}

func TestInitialReplay(t *testing.T) {
	svc := newTester(t)

	t.Run("empty", func(t *testing.T) {
		c := &collector{}
		svc.AddNodePropertiesChangeListener(c.handle)
		cs := c.wait(t, 1)
		require.True(t, cs.Empty())
		require.Empty(t, cs.NodeMaps)
	})

	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty(nodeA, "y", "2", 1),
		types.NewProperty(nodeA, "x", "1", 1),
		types.NewProperty(nodeB, "x", "hidden", 1),
	})
	svc.AddOrUpdateLocalNodeProperty("name", value("local"))

	t.Run("current state before changes", func(t *testing.T) {
		c := &collector{}
		svc.AddNodePropertiesChangeListener(c.handle)
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "z", "3", 1)})

		cs := c.wait(t, 1)
		require.Len(t, cs.Added, 3)
		require.Equal(t, map[types.NodeID]map[string]string{
			nodeA: {"x": "1", "y": "2"},
			local: {"name": "local"},
		}, cs.NodeMaps)
		require.Equal(t, 1, c.count())

		svc.flush()
		cs = c.wait(t, 2)
		require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "z", "3", 1)}, cs.Added)
	})
}

func TestCoalescing(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)

	t.Run("new key", func(t *testing.T) {
		c := subscribe(t, svc)
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewTombstone(nodeA, "k", 2)})
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "2", 3)})
		svc.flush()
		cs := c.wait(t, 2)
		require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "k", "2", 3)}, cs.Added)
		require.Empty(t, cs.Updated)
		require.Empty(t, cs.Removed)
		require.Equal(t, map[string]string{"k": "2"}, cs.NodeMaps[nodeA])

		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "marker", "m", 1)})
		svc.flush()
		require.Equal(t, "marker", c.wait(t, 3).Added[0].Key)
		require.Equal(t, 3, c.count())
	})
	t.Run("existing key", func(t *testing.T) {
		c := subscribe(t, svc)
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "3", 4)})
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewTombstone(nodeA, "k", 5)})
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "4", 6)})
		svc.flush()
		cs := c.wait(t, 2)
		require.Empty(t, cs.Added)
		require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "k", "4", 6)}, cs.Updated)
		require.Empty(t, cs.Removed)
	})
}

func TestBoundedWindow(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	c := subscribe(t, svc)

	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.clock.Advance(testWindow / 2)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "2", 2)})
	svc.clock.Advance(testWindow / 2)

	// the second change doesn't postpone the flush
	cs := c.wait(t, 2)
	require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "k", "2", 2)}, cs.Added)
}

func TestListenerPanic(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)

	var panics sync.WaitGroup
	panics.Add(2)
	svc.AddNodePropertiesChangeListener(func(ChangeSet) {
		panics.Done()
		panic("listener failure")
	})
	svc.AddRawNodePropertiesChangeListener(func([]types.NodeProperty) {
		panic("raw listener failure")
	})
	c := subscribe(t, svc)

	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.flush()
	require.Equal(t, "k", c.wait(t, 2).Added[0].Key)
	panics.Wait()
}

func TestRemoveListener(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	removed := &collector{}
	sub := svc.AddNodePropertiesChangeListener(removed.handle)
	removed.wait(t, 1)
	kept := subscribe(t, svc)

	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.RemoveNodePropertiesChangeListener(sub)
	// removing twice or the wrong kind is a no-op
	svc.RemoveNodePropertiesChangeListener(sub)
	svc.RemoveRawNodePropertiesChangeListener(sub)
	svc.flush()

	kept.wait(t, 2)
	require.Equal(t, 1, removed.count(), "pending changes are discarded")
}

func TestRawListener(t *testing.T) {
	svc := newTester(t)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "before", "1", 1)})

	var (
		mu       sync.Mutex
		received []types.NodeProperty
	)
	sub := svc.AddRawNodePropertiesChangeListener(func(records []types.NodeProperty) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, records...)
	})
	for rev := uint64(1); rev <= 50; rev++ {
		svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
			types.NewProperty(nodeA, "k", fmt.Sprint(rev), rev),
			types.NewProperty(nodeA, "k", "stale", rev-1),
		})
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 50
	}, time.Second, time.Millisecond)

	mu.Lock()
	for i, p := range received {
		require.Equal(t, uint64(i+1), p.Revision, "raw listener sees no replay and keeps order")
	}
	mu.Unlock()

	svc.RemoveRawNodePropertiesChangeListener(sub)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "late", 100)})
	require.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) != 50
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestMalformedRecords(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	c := subscribe(t, svc)

	accepted := svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty("", "k", "v", 1),
		types.NewProperty(nodeA, "", "v", 1),
		{Owner: nodeA, Key: "t", Value: "v", Deleted: true, Revision: 1},
		types.NewProperty(nodeA, "good", "v", 1),
	})
	require.Equal(t, []types.NodeProperty{types.NewProperty(nodeA, "good", "v", 1)}, accepted)
	svc.flush()
	require.Equal(t, accepted, c.wait(t, 2).Added)
	require.Equal(t, map[string]string{"good": "v"}, svc.GetNodeProperties(nodeA))
}

func TestUnknownNodeReachable(t *testing.T) {
	svc := newTester(t)
	c := subscribe(t, svc)
	svc.reachable([]types.NodeID{"unknown"}, []types.NodeID{"unknown"}, nil)
	svc.AddOrUpdateLocalNodeProperty("marker", value("m"))
	svc.flush()
	cs := c.wait(t, 2)
	require.Len(t, cs.Added, 1)
	require.Equal(t, local, cs.Added[0].Owner)
	require.NotContains(t, cs.NodeMaps, types.NodeID("unknown"))
}

func TestLocalProperties(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := newTester(t, WithPublisher(publisher))
	c := subscribe(t, svc)

	rev := uint64(time.Unix(100, 0).UnixMilli())
	publisher.EXPECT().PublishLocal([]types.NodeProperty{
		types.NewProperty(local, "a", "1", rev),
		types.NewProperty(local, "b", "2", rev),
	})
	svc.AddOrUpdateLocalNodeProperties(map[string]*string{"b": value("2"), "a": value("1")})

	publisher.EXPECT().PublishLocal([]types.NodeProperty{types.NewTombstone(local, "a", rev+1)})
	svc.AddOrUpdateLocalNodeProperty("a", nil)

	svc.flush()
	cs := c.wait(t, 2)
	require.Equal(t, []types.NodeProperty{types.NewProperty(local, "b", "2", rev)}, cs.Added)
	require.Equal(t, map[types.NodeID]map[string]string{local: {"b": "2"}}, svc.GetAllNodeProperties())
	require.ElementsMatch(t, []types.NodeProperty{
		types.NewTombstone(local, "a", rev+1),
		types.NewProperty(local, "b", "2", rev),
	}, svc.KnowledgeToShare())

	// malformed keys are not published
	svc.AddOrUpdateLocalNodeProperty("", value("x"))
}

func TestRepublishOrCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := newTester(t, WithPublisher(publisher))

	rev := uint64(time.Unix(100, 0).UnixMilli())
	publisher.EXPECT().PublishLocal(gomock.Any())
	svc.AddOrUpdateLocalNodeProperty("name", value("mine"))

	t.Run("cancel unknown key", func(t *testing.T) {
		publisher.EXPECT().PublishLocal([]types.NodeProperty{types.NewTombstone(local, "ghost", rev+1)})
		accepted := svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(local, "ghost", "boo", 5)})
		require.Empty(t, accepted)
		require.Equal(t, map[string]string{"name": "mine"}, svc.GetNodeProperties(local))
	})
	t.Run("republish newer foreign revision", func(t *testing.T) {
		foreign := rev + 1000
		publisher.EXPECT().PublishLocal([]types.NodeProperty{types.NewProperty(local, "name", "mine", foreign+1)})
		accepted := svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(local, "name", "theirs", foreign)})
		require.Empty(t, accepted)
		require.Equal(t, map[string]string{"name": "mine"}, svc.GetNodeProperties(local))
	})
	t.Run("older revision is ignored", func(t *testing.T) {
		accepted := svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(local, "name", "old", 1)})
		require.Empty(t, accepted)
	})
}

func TestComplementingKnowledge(t *testing.T) {
	records := []types.NodeProperty{
		types.NewProperty(nodeA, "x", "1", 1),
		types.NewProperty(nodeB, "x", "1", 1),
	}
	t.Run("relay", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AggregationWindow = testWindow
		cfg.Relay = true
		svc := newTester(t, WithConfig(cfg))
		svc.OnRawPropertiesAddedOrModified(records)
		require.ElementsMatch(t, records, svc.KnowledgeToShare())
		require.Equal(t, []types.NodeProperty{records[1]}, svc.ComplementingKnowledge(records[:1]))
	})
	t.Run("non relay", func(t *testing.T) {
		svc := newTester(t)
		svc.OnRawPropertiesAddedOrModified(records)
		require.Empty(t, svc.KnowledgeToShare())
		require.Empty(t, svc.ComplementingKnowledge(nil))
	})
}

func TestForgetUnreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AggregationWindow = testWindow
	cfg.Retention = time.Hour
	svc := newTester(t, WithConfig(cfg))
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty(nodeA, "x", "1", 1),
		types.NewProperty(nodeB, "x", "1", 1),
	})
	svc.reachable(nil, nil, []types.NodeID{nodeA})

	svc.clock.Advance(time.Minute)
	require.Empty(t, svc.ForgetUnreachableSince(svc.clock.Now().Add(-time.Hour)))

	svc.clock.Advance(time.Hour)
	require.Equal(t, []types.NodeID{nodeA, nodeB}, svc.ForgetUnreachableSince(svc.clock.Now().Add(-time.Hour)))
	require.Empty(t, svc.GetNodeProperties(nodeA))
	require.Empty(t, svc.GetNodeProperties(nodeB))
}

func TestDisplayNames(t *testing.T) {
	svc := newTester(t)
	names := make(chan string, 3)
	svc.WatchDisplayNames(func(id types.NodeID, name string) {
		names <- id.String() + "=" + name
	})
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
		types.NewProperty(nodeA, DisplayNameKey, "alice", 1),
		types.NewProperty(nodeA, "other", "x", 1),
	})
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewTombstone(nodeA, DisplayNameKey, 2)})
	require.Equal(t, "node-a=alice", <-names)
	require.Equal(t, "node-a=", <-names)
}

func TestClose(t *testing.T) {
	svc := newTester(t)
	c := subscribe(t, svc)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.Close()
	svc.flush()

	require.Empty(t, svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "2", 2)}))
	late := &collector{}
	svc.AddNodePropertiesChangeListener(late.handle)
	require.Never(t, func() bool { return c.count() > 1 || late.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestCloseFromListener(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	var calls atomic.Int32
	closed := make(chan struct{})
	svc.AddNodePropertiesChangeListener(func(ChangeSet) {
		if calls.Add(1) == 2 {
			svc.Close()
			close(closed)
		}
	})
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.flush()
	select {
	case <-closed:
	case <-time.After(time.Second):
		require.FailNow(t, "close blocked in the listener callback")
	}

	require.Empty(t, svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "2", 2)}))
	svc.flush()
	require.Never(t, func() bool { return calls.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestReentrantListener(t *testing.T) {
	svc := newTester(t)
	svc.reachable([]types.NodeID{nodeA}, []types.NodeID{nodeA}, nil)
	seen := make(chan map[types.NodeID]map[string]string, 2)
	svc.AddNodePropertiesChangeListener(func(ChangeSet) {
		seen <- svc.GetAllNodeProperties()
	})
	<-seen
	svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{types.NewProperty(nodeA, "k", "1", 1)})
	svc.flush()
	require.Equal(t, map[string]string{"k": "1"}, (<-seen)[nodeA])
}

func TestConcurrentIntake(t *testing.T) {
	svc := newTester(t)
	nodes := []types.NodeID{nodeA, nodeB}
	svc.reachable(nodes, nodes, nil)
	c := subscribe(t, svc)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				rev := uint64(i*4 + w + 1)
				svc.OnRawPropertiesAddedOrModified([]types.NodeProperty{
					types.NewProperty(nodes[i%2], "k", fmt.Sprint(rev), rev),
				})
				if i%10 == 0 {
					svc.reachable(nodes, nil, nil)
				}
				_ = svc.GetAllNodeProperties()
			}
		}()
	}
	wg.Wait()
	svc.flush()
	cs := c.wait(t, 2)
	require.Len(t, cs.Added, 2)
	for _, p := range cs.Added {
		stored := svc.GetNodeProperties(p.Owner)
		require.Equal(t, p.Value, stored["k"])
	}
}
