package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-grab/src/region"
	"screen-grab/src/screenshot"
	"screen-grab/src/selection"
	"screen-grab/src/storage"
)

// scriptedHost replays clicks through a real selection state machine.
type scriptedHost struct {
	events []selection.Event
	err    error
	calls  int
}

func clicks(points ...region.Point) *scriptedHost {
	h := &scriptedHost{}
	for _, p := range points {
		h.events = append(h.events,
			selection.Event{Kind: selection.EventMove, Pos: p},
			selection.Event{Kind: selection.EventPrimary, Pos: p},
		)
	}
	return h
}

func (h *scriptedHost) Select(ctx context.Context, ratio region.RatioConstraint) (region.Corners, bool, error) {
	h.calls++
	if h.err != nil {
		return region.Corners{}, false, h.err
	}
	sel, err := selection.New(ratio)
	if err != nil {
		return region.Corners{}, false, err
	}
	ch := make(chan selection.Event, len(h.events))
	for _, ev := range h.events {
		ch <- ev
	}
	close(ch)
	return sel.Run(ctx, ch, nil)
}

type fakeCapturer struct {
	calls []region.Region
	err   error
}

func (f *fakeCapturer) CaptureRegion(ctx context.Context, r region.Region) (*image.RGBA, error) {
	f.calls = append(f.calls, r)
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
}

type fakeSaver struct {
	paths []string
	err   error
}

func (f *fakeSaver) Save(img image.Image, path string) error {
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, path)
	return nil
}

func newController(t *testing.T, host *scriptedHost, ratio region.RatioConstraint) (*Controller, *fakeCapturer, *fakeSaver) {
	t.Helper()
	capt := &fakeCapturer{}
	saver := &fakeSaver{}
	c, err := NewController(Options{Selector: host, Capturer: capt, Saver: saver, Ratio: ratio})
	require.NoError(t, err)
	return c, capt, saver
}

func TestEndToEndUnconstrained(t *testing.T) {
	c, capt, _ := newController(t, clicks(region.Point{X: 100, Y: 100}, region.Point{X: 200, Y: 200}), region.Unconstrained)

	corners, ok, err := c.RunInteractiveSelection(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, region.Point{X: 200, Y: 200}, corners.First)
	assert.Equal(t, region.Point{X: 100, Y: 100}, corners.Second)

	capture, err := c.Capture(context.Background(), corners)
	require.NoError(t, err)
	assert.Equal(t, region.Region{X: 100, Y: 100, Width: 100, Height: 100}, capture.Bounds)
	assert.Equal(t, []region.Region{{X: 100, Y: 100, Width: 100, Height: 100}}, capt.calls)
	assert.Equal(t, 100, capture.Width())
	assert.Equal(t, 100, capture.Height())
	assert.NotEqual(t, uuid.Nil, capture.ID)
}

func TestEndToEndRatioConstrained(t *testing.T) {
	c, capt, _ := newController(t,
		clicks(region.Point{X: 100, Y: 100}, region.Point{X: 300, Y: 200}),
		region.RatioConstraint{Enabled: true, Ratio: 1.0})

	corners, ok, err := c.RunInteractiveSelection(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = c.Capture(context.Background(), corners)
	require.NoError(t, err)
	assert.Equal(t, []region.Region{{X: 100, Y: 100, Width: 100, Height: 100}}, capt.calls)
}

func TestCancelledSelectionCapturesNothing(t *testing.T) {
	host := &scriptedHost{events: []selection.Event{
		{Kind: selection.EventPrimary, Pos: region.Point{X: 10, Y: 10}},
		{Kind: selection.EventAbandon},
	}}
	c, capt, saver := newController(t, host, region.Unconstrained)

	var failures []error
	succeeded := false
	res, err := c.Execute(context.Background(), ExecuteOptions{
		OutputDir: "shots",
		Targets: []ResultTarget{FuncTarget{
			Success: func(*Capture) error { succeeded = true; return nil },
			Failure: func(err error) { failures = append(failures, err) },
		}},
	})
	assert.ErrorIs(t, err, ErrSelectionCancelled)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, capt.calls)
	assert.Empty(t, saver.paths)
	assert.False(t, succeeded)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ErrSelectionCancelled)

	_, ok := c.Last()
	assert.False(t, ok)
}

func TestCaptureBeforeSelectionNeverInvokesCollaborator(t *testing.T) {
	c, capt, _ := newController(t, clicks(), region.Unconstrained)

	_, err := c.Capture(context.Background(), region.Corners{})
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
	assert.ErrorIs(t, err, screenshot.ErrEmptyRegion)
	assert.Empty(t, capt.calls)
}

func TestZeroAreaSelectionIsCaptureFailure(t *testing.T) {
	p := region.Point{X: 50, Y: 50}
	c, capt, _ := newController(t, clicks(p, p), region.Unconstrained)

	_, err := c.Execute(context.Background(), ExecuteOptions{})
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
	assert.Empty(t, capt.calls)
}

func TestCaptureCollaboratorFailure(t *testing.T) {
	c, capt, _ := newController(t, clicks(), region.Unconstrained)
	boom := errors.New("display gone")
	capt.err = boom

	_, err := c.Capture(context.Background(), region.Corners{First: region.Point{X: 0, Y: 0}, Second: region.Point{X: 5, Y: 5}})
	assert.ErrorIs(t, err, ErrCaptureUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestSaveBeforeCapture(t *testing.T) {
	c, _, saver := newController(t, clicks(), region.Unconstrained)

	err := c.Save(filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, ErrNoCaptureAvailable)
	assert.Empty(t, saver.paths)
}

func TestSaveFailureIsPersistenceFailure(t *testing.T) {
	c, _, saver := newController(t, clicks(), region.Unconstrained)
	_, err := c.Capture(context.Background(), region.Corners{Second: region.Point{X: 4, Y: 4}})
	require.NoError(t, err)

	saver.err = errors.New("disk full")
	err = c.Save("out.png")
	assert.ErrorIs(t, err, ErrPersistenceFailure)
}

func TestSaveWritesLastCapture(t *testing.T) {
	capt := &fakeCapturer{}
	c, err := NewController(Options{Capturer: capt, Saver: storage.FileSaver{}})
	require.NoError(t, err)

	_, err = c.Capture(context.Background(), region.Corners{First: region.Point{X: 10, Y: 10}, Second: region.Point{X: 16, Y: 14}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, c.Save(path))
}

func TestSetRatio(t *testing.T) {
	c, _, _ := newController(t, clicks(), region.Unconstrained)

	assert.ErrorIs(t, c.SetRatio(true, 0), region.ErrInvalidRatio)
	assert.ErrorIs(t, c.SetRatio(true, -1), region.ErrInvalidRatio)
	require.NoError(t, c.SetRatio(false, 0))
	require.NoError(t, c.SetRatio(true, 16.0/9.0))
	assert.Equal(t, region.RatioConstraint{Enabled: true, Ratio: 16.0 / 9.0}, c.Ratio())
}

func TestNewControllerRejectsInvalidRatio(t *testing.T) {
	_, err := NewController(Options{Ratio: region.RatioConstraint{Enabled: true}})
	assert.ErrorIs(t, err, region.ErrInvalidRatio)
}

func TestRunInteractiveSelectionWithoutHost(t *testing.T) {
	c, err := NewController(Options{})
	require.NoError(t, err)
	_, _, err = c.RunInteractiveSelection(context.Background())
	assert.Error(t, err)
}

func TestPreviewKeepsAspect(t *testing.T) {
	c, _, _ := newController(t, clicks(), region.Unconstrained)

	_, err := c.Preview(100, 100)
	assert.ErrorIs(t, err, ErrNoCaptureAvailable)

	_, err = c.Capture(context.Background(), region.Corners{Second: region.Point{X: 400, Y: 200}})
	require.NoError(t, err)

	img, err := c.Preview(100, 100)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	img, err = c.Preview(1000, 1000)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1000, 500), img.Bounds())

	_, err = c.Preview(0, 10)
	assert.Error(t, err)
}

func TestExecuteSavesAndNotifies(t *testing.T) {
	c, _, saver := newController(t, clicks(region.Point{X: 0, Y: 0}, region.Point{X: 20, Y: 10}), region.Unconstrained)
	c.now = func() time.Time { return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC) }

	var buf bytes.Buffer
	var got *Capture
	res, err := c.Execute(context.Background(), ExecuteOptions{
		OutputDir: "shots",
		Format:    storage.FormatJPEG,
		Targets: []ResultTarget{
			WriterTarget{Writer: &buf},
			FuncTarget{Success: func(cp *Capture) error { got = cp; return nil }},
		},
	})
	require.NoError(t, err)

	require.Len(t, saver.paths, 1)
	assert.Equal(t, res.Path, saver.paths[0])
	assert.True(t, strings.HasPrefix(filepath.Base(res.Path), "grab-20240102-150405-"))
	assert.Equal(t, ".jpg", filepath.Ext(res.Path))
	assert.Same(t, res.Capture, got)

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), decoded.Bounds())
}

func TestExecuteReportsFailureToTargets(t *testing.T) {
	host := &scriptedHost{err: errors.New("no display")}
	c, _, _ := newController(t, host, region.Unconstrained)

	var failures []error
	_, err := c.Execute(context.Background(), ExecuteOptions{
		Targets: []ResultTarget{FuncTarget{Failure: func(err error) { failures = append(failures, err) }}},
	})
	assert.Error(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, err, failures[0])
}

func TestFileNameDefaultsToPNG(t *testing.T) {
	cp := &Capture{ID: uuid.MustParse("1a2b3c4d-0000-0000-0000-000000000000"), TakenAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)}
	assert.Equal(t, "grab-20240506-070809-1a2b3c4d.png", FileName(cp, ""))
	assert.Equal(t, "grab-20240506-070809-1a2b3c4d.tiff", FileName(cp, storage.FormatTIFF))
}

func TestExecuteExplicitPathGetsExtension(t *testing.T) {
	c, _, saver := newController(t, clicks(region.Point{X: 0, Y: 0}, region.Point{X: 8, Y: 8}), region.Unconstrained)

	res, err := c.Execute(context.Background(), ExecuteOptions{OutputPath: "out/shot", Format: storage.FormatBMP})
	require.NoError(t, err)
	assert.Equal(t, "out/shot.bmp", res.Path)
	assert.Equal(t, []string{"out/shot.bmp"}, saver.paths)
}
