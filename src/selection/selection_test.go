package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-grab/src/region"
)

func newSelector(t *testing.T, c region.RatioConstraint) *Selector {
	t.Helper()
	s, err := New(c)
	require.NoError(t, err)
	return s
}

func TestNewSelectorIsIdle(t *testing.T) {
	s := newSelector(t, region.Unconstrained)

	assert.Equal(t, Idle, s.Phase())
	assert.False(t, s.IsComplete())
	_, ok := s.Result()
	assert.False(t, ok)
	_, ok = s.Anchor()
	assert.False(t, ok)
	_, ok = s.Current()
	assert.False(t, ok)
}

func TestNewRejectsInvalidRatio(t *testing.T) {
	_, err := New(region.RatioConstraint{Enabled: true, Ratio: 0})
	assert.ErrorIs(t, err, region.ErrInvalidRatio)
}

func TestPointerMoveTracksCursor(t *testing.T) {
	s := newSelector(t, region.Unconstrained)

	s.PointerMove(region.Point{X: 100, Y: 100})
	assert.Equal(t, region.Point{X: 100, Y: 100}, s.Cursor())
	_, ok := s.Current()
	assert.False(t, ok, "no region without an anchor")

	s.PrimaryClick(region.Point{X: 100, Y: 100})
	s.PointerMove(region.Point{X: 160, Y: 130})

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, region.Region{X: 100, Y: 100, Width: 60, Height: 30}, cur)
	assert.Equal(t, region.Point{X: 160, Y: 130}, s.Cursor())
}

func TestCurrentRegionIffAnchor(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	check := func() {
		_, hasAnchor := s.Anchor()
		_, hasRegion := s.Current()
		assert.Equal(t, hasAnchor, hasRegion, "phase %s", s.Phase())
	}

	check()
	s.PointerMove(region.Point{X: 1, Y: 1})
	check()
	s.PrimaryClick(region.Point{X: 1, Y: 1})
	check()
	s.PointerMove(region.Point{X: 9, Y: 9})
	check()
	s.SecondaryClick()
	check()
	s.PointerMove(region.Point{X: 4, Y: 4})
	check()
}

func TestTwoClicksTopDown(t *testing.T) {
	s := newSelector(t, region.Unconstrained)

	s.PrimaryClick(region.Point{X: 100, Y: 100})
	assert.Equal(t, Anchoring, s.Phase())
	s.PrimaryClick(region.Point{X: 200, Y: 200})

	require.True(t, s.IsComplete())
	cur, _ := s.Current()
	assert.Equal(t, region.Region{X: 100, Y: 100, Width: 100, Height: 100}, cur)

	got, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, region.Point{X: 200, Y: 200}, got.First)
	assert.Equal(t, region.Point{X: 100, Y: 100}, got.Second)
}

func TestTwoClicksBottomUpSwapsCorners(t *testing.T) {
	down := newSelector(t, region.Unconstrained)
	down.PrimaryClick(region.Point{X: 100, Y: 100})
	down.PrimaryClick(region.Point{X: 500, Y: 500})

	up := newSelector(t, region.Unconstrained)
	up.PrimaryClick(region.Point{X: 500, Y: 500})
	up.PrimaryClick(region.Point{X: 100, Y: 100})

	d, _ := down.Result()
	u, _ := up.Result()
	assert.Equal(t, d.Bounds(), u.Bounds())
	assert.Equal(t, d.First, u.Second)
	assert.Equal(t, d.Second, u.First)
	assert.Equal(t, region.Point{X: 100, Y: 100}, u.First)
	assert.Equal(t, region.Point{X: 500, Y: 500}, u.Second)
}

func TestRatioConstrainedSelection(t *testing.T) {
	s := newSelector(t, region.RatioConstraint{Enabled: true, Ratio: 1})

	s.PrimaryClick(region.Point{X: 100, Y: 100})
	s.PrimaryClick(region.Point{X: 300, Y: 200})

	cur, _ := s.Current()
	assert.Equal(t, region.Region{X: 100, Y: 100, Width: 100, Height: 100}, cur)
	got, _ := s.Result()
	assert.Equal(t, region.Region{X: 100, Y: 100, Width: 100, Height: 100}, got.Bounds())
	assert.Equal(t, region.Point{X: 100, Y: 100}, got.Second)
}

func TestSecondaryClickWithoutAnchorIsNoop(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	s.PointerMove(region.Point{X: 42, Y: 24})
	before := s.Snapshot()

	s.SecondaryClick()

	assert.Equal(t, before, s.Snapshot())
	assert.False(t, s.Apply(Event{Kind: EventSecondary}))
}

func TestSecondaryClickResetsAnchor(t *testing.T) {
	s := newSelector(t, region.Unconstrained)

	s.PrimaryClick(region.Point{X: 100, Y: 100})
	a, ok := s.Anchor()
	require.True(t, ok)
	assert.Equal(t, region.Point{X: 100, Y: 100}, a)

	s.SecondaryClick()
	_, ok = s.Anchor()
	assert.False(t, ok)
	assert.Equal(t, Idle, s.Phase())

	s.PrimaryClick(region.Point{X: 10, Y: 20})
	a, ok = s.Anchor()
	require.True(t, ok)
	assert.Equal(t, region.Point{X: 10, Y: 20}, a)
	assert.False(t, s.IsComplete(), "a reset anchor starts a fresh selection")

	s.PrimaryClick(region.Point{X: 30, Y: 60})
	got, _ := s.Result()
	assert.Equal(t, region.Region{X: 10, Y: 20, Width: 20, Height: 40}, got.Bounds())
}

func TestIdenticalClicksYieldZeroArea(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	s.PrimaryClick(region.Point{X: 77, Y: 77})
	s.PrimaryClick(region.Point{X: 77, Y: 77})

	require.True(t, s.IsComplete())
	got, ok := s.Result()
	require.True(t, ok)
	assert.True(t, got.Bounds().Empty())
	assert.Equal(t, region.Point{X: 77, Y: 77}, got.First)
	assert.Equal(t, region.Point{X: 77, Y: 77}, got.Second)
}

func TestCompleteIgnoresFurtherEvents(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	s.PrimaryClick(region.Point{X: 0, Y: 0})
	s.PrimaryClick(region.Point{X: 10, Y: 10})
	want, _ := s.Result()
	snap := s.Snapshot()

	s.PointerMove(region.Point{X: 99, Y: 99})
	s.PrimaryClick(region.Point{X: 50, Y: 50})
	s.SecondaryClick()
	s.Abandon()

	got, _ := s.Result()
	assert.Equal(t, want, got)
	assert.Equal(t, snap, s.Snapshot())
	assert.Equal(t, Complete, s.Phase())
}

func TestConfigureRatio(t *testing.T) {
	s := newSelector(t, region.Unconstrained)

	require.NoError(t, s.ConfigureRatio(true, 2))
	assert.Equal(t, region.RatioConstraint{Enabled: true, Ratio: 2}, s.Ratio())

	assert.ErrorIs(t, s.ConfigureRatio(true, -1), region.ErrInvalidRatio)
	assert.Equal(t, 2.0, s.Ratio().Ratio, "rejected ratio leaves the old one")

	s.PrimaryClick(region.Point{X: 1, Y: 1})
	assert.ErrorIs(t, s.ConfigureRatio(false, 1), ErrSessionActive)

	s.SecondaryClick()
	assert.NoError(t, s.ConfigureRatio(false, 1))
}

func TestAbandon(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	s.PrimaryClick(region.Point{X: 5, Y: 5})
	s.Abandon()

	assert.Equal(t, Cancelled, s.Phase())
	assert.True(t, s.Phase().Terminal())
	_, ok := s.Result()
	assert.False(t, ok)
	_, ok = s.Anchor()
	assert.False(t, ok)
}

func TestRunCompletes(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	events := make(chan Event, 8)
	events <- Event{Kind: EventMove, Pos: region.Point{X: 100, Y: 100}}
	events <- Event{Kind: EventPrimary, Pos: region.Point{X: 100, Y: 100}}
	events <- Event{Kind: EventMove, Pos: region.Point{X: 150, Y: 150}}
	events <- Event{Kind: EventPrimary, Pos: region.Point{X: 200, Y: 200}}
	events <- Event{Kind: EventMove, Pos: region.Point{X: 0, Y: 0}}

	var snapshots []State
	got, ok, err := s.Run(context.Background(), events, func(st State) {
		snapshots = append(snapshots, st)
	})

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, region.Corners{First: region.Point{X: 200, Y: 200}, Second: region.Point{X: 100, Y: 100}}, got)
	assert.Len(t, snapshots, 4)
	assert.Len(t, events, 1, "events after completion stay unread")
}

func TestRunAbandonedByEvent(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	events := make(chan Event, 2)
	events <- Event{Kind: EventPrimary, Pos: region.Point{X: 1, Y: 1}}
	events <- Event{Kind: EventAbandon}

	_, ok, err := s.Run(context.Background(), events, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Cancelled, s.Phase())
}

func TestRunAbandonedByClosedChannel(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	events := make(chan Event)
	close(events)

	_, ok, err := s.Run(context.Background(), events, nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRunHonoursContext(t *testing.T) {
	s := newSelector(t, region.Unconstrained)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := s.Run(ctx, make(chan Event), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
	assert.Equal(t, Cancelled, s.Phase())
}
