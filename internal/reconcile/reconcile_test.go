package reconcile

import (
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/comande/internal/model"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func order(id int, device string, status model.Status) model.Order {
	return model.Order{
		ID:        id,
		Table:     "Tavolo 5",
		Dishes:    []string{"Pizza Margherita"},
		Drinks:    []string{},
		CreatedAt: t0,
		Status:    status,
		DeviceID:  device,
	}
}

func state(counter int, orders ...model.Order) model.State {
	return model.State{
		Orders:  orders,
		Counter: counter,
		Dishes:  []string{"Pizza Margherita"},
		Drinks:  []string{"Birra"},
	}
}

func TestCheck(t *testing.T) {
	env := state(2, order(1, "device-b", model.StatusPending)).Envelope("device-b", 100)

	assert.Equal(t, SkipAbsent, Check(model.Envelope{}, false, "device-a", 0))
	assert.Equal(t, SkipSelf, Check(env, true, "device-b", 0))
	assert.Equal(t, SkipStale, Check(env, true, "device-a", 100))
	assert.Equal(t, SkipStale, Check(env, true, "device-a", 150))
	assert.Equal(t, Proceed, Check(env, true, "device-a", 99))
}

func TestMerge_AppendsUnknownOrders(t *testing.T) {
	local := state(2, order(1, "device-a", model.StatusPending))
	env := state(4, order(1, "device-a", model.StatusPending), order(3, "device-b", model.StatusPending)).
		Envelope("device-b", 100)

	out := Merge(local, env)

	assert.Equal(t, []int{1, 3}, out.State.IDs())
	require.Len(t, out.NewOrders, 1)
	assert.Equal(t, 3, out.NewOrders[0].ID)
	assert.Equal(t, 4, out.State.Counter)
	assert.True(t, out.CounterRaised)
	assert.Equal(t, int64(100), out.Watermark)
	assert.True(t, out.Changed())
}

func TestMerge_NeverDropsLocalOrders(t *testing.T) {
	local := state(3, order(1, "device-a", model.StatusPending), order(2, "device-a", model.StatusReady))
	env := state(1).Envelope("device-b", 100)

	out := Merge(local, env)

	assert.Equal(t, []int{1, 2}, out.State.IDs())
	assert.Empty(t, out.NewOrders)
	assert.Equal(t, 3, out.State.Counter, "counter never decreases")
	assert.True(t, out.Republish, "envelope lacks local orders")
}

func TestMerge_DoesNotModifyInputs(t *testing.T) {
	local := state(2, order(1, "device-a", model.StatusPending))
	env := state(3, order(1, "device-a", model.StatusReady), order(2, "device-b", model.StatusPending)).
		Envelope("device-b", 100)
	env.Dishes = []string{"Tiramisù"}

	localCopy := local.Clone()
	envCopy := env.State()

	out := Merge(local, env)
	out.State.Orders[0].Dishes[0] = "mutated"
	out.State.Dishes[0] = "mutated"

	assert.Equal(t, localCopy, local)
	assert.Equal(t, envCopy, env.State())
}

func TestMerge_Idempotent(t *testing.T) {
	local := state(2, order(1, "device-a", model.StatusPreparing))
	env := state(5,
		order(1, "device-a", model.StatusReady),
		order(3, "device-b", model.StatusPending),
		order(4, "device-b", model.StatusServed),
	).Envelope("device-b", 100)
	env.Drinks = []string{"Vino Rosso"}

	once := Merge(local, env)
	twice := Merge(once.State, env)

	assert.Equal(t, once.State, twice.State)
	assert.False(t, twice.Changed())
	assert.Empty(t, twice.NewOrders)
	assert.Empty(t, twice.Advanced)
}

func TestMerge_CounterIsMax(t *testing.T) {
	tests := []struct {
		local, remote, want int
	}{
		{1, 1, 1},
		{1, 7, 7},
		{9, 2, 9},
	}
	for _, tt := range tests {
		out := Merge(state(tt.local), state(tt.remote).Envelope("device-b", 1))
		assert.Equal(t, tt.want, out.State.Counter, "max(%d, %d)", tt.local, tt.remote)
		assert.Equal(t, tt.remote > tt.local, out.CounterRaised)
	}
}

func TestMerge_CounterStaysAboveIncomingIDs(t *testing.T) {
	env := state(1, order(6, "device-b", model.StatusPending)).Envelope("device-b", 1)

	out := Merge(state(1), env)
	assert.Equal(t, 7, out.State.Counter)
}

func TestMerge_AdvancesStatusOfKnownOrder(t *testing.T) {
	local := state(2, order(1, "device-a", model.StatusPreparing))
	served := order(1, "device-a", model.StatusServed)
	served.StatusUpdatedBy = "device-b"
	served.StatusUpdatedAt = t0.Add(time.Minute)
	env := state(2, served).Envelope("device-b", 100)

	out := Merge(local, env)

	require.Len(t, out.Advanced, 1)
	assert.Equal(t, StatusChange{OrderID: 1, From: model.StatusPreparing, To: model.StatusServed, By: "device-b"}, out.Advanced[0])
	assert.Equal(t, model.StatusServed, out.State.Orders[0].Status)
	assert.Equal(t, "device-b", out.State.Orders[0].StatusUpdatedBy)
	assert.False(t, out.Republish)
}

func TestMerge_NeverRegressesStatus(t *testing.T) {
	local := state(2, order(1, "device-a", model.StatusReady))
	env := state(2, order(1, "device-a", model.StatusPending)).Envelope("device-b", 100)

	out := Merge(local, env)

	assert.Empty(t, out.Advanced)
	assert.Equal(t, model.StatusReady, out.State.Orders[0].Status)
	assert.True(t, out.Republish, "local status is further along than the envelope's")
}

func TestMerge_CollisionKeepsLocal(t *testing.T) {
	mine := order(1, "device-a", model.StatusPending)
	mine.Table = "Tavolo 1"
	theirs := order(1, "device-b", model.StatusServed)
	theirs.Table = "Tavolo 9"

	out := Merge(state(2, mine), state(2, theirs).Envelope("device-b", 100))

	require.Len(t, out.Collisions, 1)
	assert.Equal(t, Collision{OrderID: 1, LocalDevice: "device-a", IncomingDevice: "device-b"}, out.Collisions[0])
	assert.Equal(t, "Tavolo 1", out.State.Orders[0].Table)
	assert.Equal(t, model.StatusPending, out.State.Orders[0].Status)
	assert.Empty(t, out.NewOrders)
	assert.False(t, out.Republish)
}

func TestMerge_MenuIsLastWriterWins(t *testing.T) {
	local := state(1)
	local.Dishes = append(local.Dishes, "Lasagne")

	remote := state(1)
	remote.Dishes = append(remote.Dishes, "Tiramisù")

	out := Merge(local, remote.Envelope("device-b", 100))

	assert.True(t, out.MenuChanged)
	assert.Equal(t, []string{"Pizza Margherita", "Tiramisù"}, out.State.Dishes)
	assert.NotContains(t, out.State.Dishes, "Lasagne")
}

func TestMerge_EmptyMenuReplacesLocal(t *testing.T) {
	remote := state(1)
	remote.Drinks = nil

	out := Merge(state(1), remote.Envelope("device-b", 100))
	assert.True(t, out.MenuChanged)
	assert.NotNil(t, out.State.Drinks)
	assert.Empty(t, out.State.Drinks)
}

func TestMerge_RepublishOnlyWhenAhead(t *testing.T) {
	env := state(3, order(1, "device-b", model.StatusPending), order(2, "device-b", model.StatusPending)).
		Envelope("device-b", 100)

	caughtUp := Merge(state(1), env)
	assert.False(t, caughtUp.Republish)

	aheadCounter := Merge(state(8), env)
	assert.True(t, aheadCounter.Republish)
}

// Two devices with disjoint order sets exchange envelopes, each merging the
// other's latest publication. Both must end up with every id exactly once.
func TestMerge_ConcurrentDevicesConverge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		a := state(1)
		b := state(1)
		next := 1
		for i := rng.Intn(5); i >= 0; i-- {
			a.Orders = append(a.Orders, order(next, "device-a", model.StatusPending))
			next++
		}
		for i := rng.Intn(5); i >= 0; i-- {
			b.Orders = append(b.Orders, order(next, "device-b", model.StatusPending))
			next++
		}
		a.Counter = next
		b.Counter = next
		want := append(a.IDs(), b.IDs()...)
		slices.Sort(want)

		// b publishes, a merges and republishes, b merges a's envelope.
		outA := Merge(a, b.Envelope("device-b", 10))
		require.True(t, outA.Republish)
		outB := Merge(b, outA.State.Envelope("device-a", 11))
		assert.False(t, outB.Republish)

		for _, got := range [][]int{outA.State.IDs(), outB.State.IDs()} {
			slices.Sort(got)
			assert.Equal(t, want, got, "round %d", round)
		}
	}
}
