package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/comande/internal/model"
	"github.com/roach88/comande/internal/testutil"
)

func messages(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestNotify_NewestFirstBoundedLog(t *testing.T) {
	d := New(testutil.NewFakeClock())

	for i := 1; i <= 7; i++ {
		d.Notify(fmt.Sprintf("m%d", i), SeveritySuccess)
	}

	assert.Equal(t, []string{"m7", "m6", "m5", "m4", "m3"}, messages(d.Entries()))
}

func TestNotify_EntriesExpire(t *testing.T) {
	clk := testutil.NewFakeClock()
	d := New(clk)

	d.Notify("first", SeveritySuccess)
	clk.Advance(3 * time.Second)
	d.Notify("second", SeverityWarning)

	clk.Advance(2 * time.Second)
	assert.Equal(t, []string{"second"}, messages(d.Entries()))

	clk.Advance(3 * time.Second)
	assert.Empty(t, d.Entries())
	assert.Zero(t, clk.Pending())
}

func TestNotify_EvictionStopsExpiryTimer(t *testing.T) {
	clk := testutil.NewFakeClock()
	d := New(clk, WithCapacity(2))

	d.Notify("a", SeveritySuccess)
	d.Notify("b", SeveritySuccess)
	d.Notify("c", SeveritySuccess)

	assert.Equal(t, 2, clk.Pending())
}

func TestNotify_CustomTTL(t *testing.T) {
	clk := testutil.NewFakeClock()
	d := New(clk, WithTTL(time.Minute))

	d.Notify("x", SeveritySuccess)
	clk.Advance(30 * time.Second)
	assert.Len(t, d.Entries(), 1)
}

func TestClear(t *testing.T) {
	clk := testutil.NewFakeClock()
	d := New(clk)
	d.Notify("a", SeveritySuccess)
	d.Notify("b", SeveritySuccess)

	d.Clear()
	assert.Empty(t, d.Entries())
	assert.Zero(t, clk.Pending())
}

type fakePusher struct {
	perm      Permission
	grant     Permission
	requests  int
	shown     []Push
	showErr   error
	askFailed error
}

func (p *fakePusher) Permission() Permission { return p.perm }

func (p *fakePusher) RequestPermission(context.Context) (Permission, error) {
	p.requests++
	if p.askFailed != nil {
		return PermissionDefault, p.askFailed
	}
	p.perm = p.grant
	return p.perm, nil
}

func (p *fakePusher) Show(_ context.Context, push Push) error {
	if p.showErr != nil {
		return p.showErr
	}
	p.shown = append(p.shown, push)
	return nil
}

func TestTryPush_Granted(t *testing.T) {
	p := &fakePusher{perm: PermissionGranted}
	d := New(testutil.NewFakeClock(), WithPusher(p))

	require.NoError(t, d.TryPush(context.Background(), "Ordine #1 pronto!"))
	require.Len(t, p.shown, 1)
	assert.Equal(t, Push{
		Title:              "Comande Restaurant",
		Body:               "Ordine #1 pronto!",
		Tag:                "order-update",
		RequireInteraction: true,
		Actions:            []Action{{Action: "view", Title: "Visualizza"}},
	}, p.shown[0])
}

func TestTryPush_Unavailable(t *testing.T) {
	d := New(testutil.NewFakeClock())

	err := d.TryPush(context.Background(), "x")
	assert.True(t, model.IsNotificationError(err))

	assert.NotPanics(t, func() { d.PushExternally(context.Background(), "x") })
}

func TestTryPush_ToleratesEveryPermissionValue(t *testing.T) {
	for _, perm := range []Permission{PermissionDenied, "", "prompt", "weird"} {
		p := &fakePusher{perm: perm}
		d := New(testutil.NewFakeClock(), WithPusher(p))

		err := d.TryPush(context.Background(), "x")
		assert.True(t, model.IsNotificationError(err), "permission %q", perm)
		assert.Empty(t, p.shown)
		assert.Zero(t, p.requests)
	}
}

func TestTryPush_DefaultPermissionAskedOnce(t *testing.T) {
	p := &fakePusher{perm: PermissionDefault, grant: PermissionDefault}
	d := New(testutil.NewFakeClock(), WithPusher(p))
	ctx := context.Background()

	assert.Error(t, d.TryPush(ctx, "a"))
	assert.Error(t, d.TryPush(ctx, "b"))
	assert.Equal(t, 1, p.requests)
}

func TestTryPush_GrantAddsConfirmation(t *testing.T) {
	p := &fakePusher{perm: PermissionDefault, grant: PermissionGranted}
	d := New(testutil.NewFakeClock(), WithPusher(p))

	require.NoError(t, d.TryPush(context.Background(), "Ordine #2 servito"))
	assert.Len(t, p.shown, 1)
	assert.Equal(t, []string{"Notifiche push attivate!"}, messages(d.Entries()))
}

func TestTryPush_ChannelErrorsAreWrapped(t *testing.T) {
	ask := &fakePusher{perm: PermissionDefault, askFailed: fmt.Errorf("blocked")}
	err := New(testutil.NewFakeClock(), WithPusher(ask)).TryPush(context.Background(), "x")
	assert.True(t, model.IsNotificationError(err))

	show := &fakePusher{perm: PermissionGranted, showErr: fmt.Errorf("gone")}
	err = New(testutil.NewFakeClock(), WithPusher(show)).TryPush(context.Background(), "x")
	assert.True(t, model.IsNotificationError(err))
	assert.ErrorContains(t, err, "gone")
}

func TestAnnounce_LogsAndPushes(t *testing.T) {
	p := &fakePusher{perm: PermissionGranted}
	d := New(testutil.NewFakeClock(), WithPusher(p))

	d.Announce(context.Background(), Notice{
		Kind:    "status-changed",
		OrderID: 1,
		Status:  model.StatusReady,
		Message: "Ordine #1 pronto!",
	})

	entries := d.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, SeveritySuccess, entries[0].Severity)
	assert.Len(t, p.shown, 1)
}

func TestAnnounce_RuleFilters(t *testing.T) {
	rule, err := CompileRule(`status == "ready"`)
	require.NoError(t, err)

	p := &fakePusher{perm: PermissionGranted}
	d := New(testutil.NewFakeClock(), WithPusher(p), WithRule(rule))
	ctx := context.Background()

	d.Announce(ctx, Notice{OrderID: 1, Status: model.StatusPreparing, Message: "Ordine #1 in preparazione"})
	d.Announce(ctx, Notice{OrderID: 1, Status: model.StatusReady, Message: "Ordine #1 pronto!"})

	assert.Len(t, d.Entries(), 2, "every notice is logged")
	require.Len(t, p.shown, 1)
	assert.Equal(t, "Ordine #1 pronto!", p.shown[0].Body)
}

func TestAnnounce_NoPusherIsSilent(t *testing.T) {
	d := New(testutil.NewFakeClock())
	d.Announce(context.Background(), Notice{Message: "Ordine #1 pronto!"})
	assert.Len(t, d.Entries(), 1)
}
