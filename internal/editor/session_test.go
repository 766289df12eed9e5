package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/captionist/captionist/internal/render"
	"github.com/captionist/captionist/internal/scene"
)

const testImageURL = "https://images.example.com/photo.jpg"

var blue = color.RGBA{B: 255, A: 255}

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func staticLoader(img image.Image) ImageLoader {
	return LoaderFunc(func(ctx context.Context, _ string) (image.Image, error) {
		return img, nil
	})
}

// gatedLoader holds every load until release is closed.
func gatedLoader(img image.Image) (ImageLoader, chan struct{}) {
	release := make(chan struct{})
	return LoaderFunc(func(ctx context.Context, _ string) (image.Image, error) {
		select {
		case <-release:
			return img, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), release
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newReadySession(t *testing.T) (*Session, *render.Host) {
	t.Helper()
	host := render.NewHost(nil)
	sess, err := NewSession(host, staticLoader(solidImage(800, 600, blue)), 600, 420)
	require.NoError(t, err)
	t.Cleanup(sess.Dispose)

	require.NoError(t, sess.Load(testImageURL))
	require.NoError(t, sess.Wait(waitCtx(t)))
	return sess, host
}

func objectIDs(t *testing.T, sess *Session) []string {
	t.Helper()
	objs, err := sess.Objects()
	require.NoError(t, err)
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	return ids
}

func TestObjectsFollowCallOrder(t *testing.T) {
	sess, _ := newReadySession(t)

	var want []string
	for _, kind := range scene.ShapeKinds {
		id, err := sess.AddShape(kind)
		require.NoError(t, err)
		want = append(want, id)
	}
	id, err := sess.AddText("Your Caption")
	require.NoError(t, err)
	want = append(want, id)

	_, err = sess.AddText("   ")
	assert.ErrorIs(t, err, ErrEmptyCaption)
	_, err = sess.AddShapeNamed("hexagon")
	assert.ErrorIs(t, err, ErrUnknownShapeKind)
	_, err = sess.AddShape(scene.ShapeKind(42))
	assert.ErrorIs(t, err, ErrUnknownShapeKind)

	assert.Equal(t, want, objectIDs(t, sess))

	objs, err := sess.Objects()
	require.NoError(t, err)
	assert.Equal(t, scene.ObjectTypeRectangle, objs[0].Type)
	assert.Equal(t, scene.ObjectTypeTriangle, objs[1].Type)
	assert.Equal(t, scene.ObjectTypeCircle, objs[2].Type)
	assert.Equal(t, scene.ObjectTypePolygon, objs[3].Type)
	assert.Equal(t, scene.ObjectTypeText, objs[4].Type)
	for _, o := range objs {
		assert.Equal(t, scene.Transform{X: 50, Y: 50, ScaleX: 1, ScaleY: 1}, o.Transform)
	}
}

func TestAddedObjectBecomesSelection(t *testing.T) {
	sess, _ := newReadySession(t)

	first, err := sess.AddShape(scene.ShapeCircle)
	require.NoError(t, err)
	second, err := sess.AddText("hello")
	require.NoError(t, err)

	sel, err := sess.Selection()
	require.NoError(t, err)
	assert.Equal(t, []string{second}, sel)

	objs, err := sess.Objects()
	require.NoError(t, err)
	assert.Equal(t, first, objs[0].ID)
	assert.Equal(t, float64(50), objs[0].Transform.X)
}

func TestRemoveSelectedWithEmptySelection(t *testing.T) {
	sess, _ := newReadySession(t)
	_, err := sess.AddShape(scene.ShapeRectangle)
	require.NoError(t, err)
	_, err = sess.AddText("caption")
	require.NoError(t, err)
	require.NoError(t, sess.ClearSelection())

	before := objectIDs(t, sess)
	n, err := sess.RemoveSelected()
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Zero(t, n)
	assert.Equal(t, before, objectIDs(t, sess))
}

func TestRemoveSelectedWithEverythingSelected(t *testing.T) {
	sess, _ := newReadySession(t)
	for _, kind := range scene.ShapeKinds {
		_, err := sess.AddShape(kind)
		require.NoError(t, err)
	}

	sel, err := sess.SetSelection(objectIDs(t, sess))
	require.NoError(t, err)
	require.Len(t, sel, 4)

	n, err := sess.RemoveSelected()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Empty(t, objectIDs(t, sess))

	sel, err = sess.Selection()
	require.NoError(t, err)
	assert.Empty(t, sel)
	assert.False(t, sess.Status().CanRemove)
}

func TestBackgroundFitAnchoredAtOrigin(t *testing.T) {
	sess, _ := newReadySession(t)

	st := sess.Status()
	require.NotNil(t, st.Image)
	assert.InDelta(t, 0.7, st.Image.Scale, 1e-9)
	assert.Equal(t, testImageURL, st.Image.Source)

	data, err := sess.ExportPNG()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 600, 420), img.Bounds())

	// 800x600 at 0.7 covers 560x420 from the top-left; the strip to the
	// right shows the white fill
	r, g, b, _ := img.At(10, 10).RGBA()
	assert.InDelta(t, 0, r>>8, 2)
	assert.InDelta(t, 0, g>>8, 2)
	assert.InDelta(t, 255, b>>8, 2)
	r, g, b, _ = img.At(590, 10).RGBA()
	assert.Equal(t, [3]uint32{0xffff, 0xffff, 0xffff}, [3]uint32{r, g, b})
}

func TestExportRequiresReady(t *testing.T) {
	host := render.NewHost(nil)
	loader, release := gatedLoader(solidImage(100, 100, blue))
	sess, err := NewSession(host, loader, 600, 420)
	require.NoError(t, err)
	defer sess.Dispose()

	_, err = sess.ExportPNG()
	assert.ErrorIs(t, err, ErrSessionNotReady, "empty")

	require.NoError(t, sess.Load(testImageURL))
	assert.Equal(t, StateLoading, sess.Status().State)
	_, err = sess.ExportPNG()
	assert.ErrorIs(t, err, ErrSessionNotReady, "loading")
	_, err = sess.AddText("too early")
	assert.ErrorIs(t, err, ErrSessionNotReady)

	close(release)
	require.NoError(t, sess.Wait(waitCtx(t)))

	data, err := sess.ExportPNG()
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 420, cfg.Height)
}

func TestLoadOnlyOnce(t *testing.T) {
	sess, _ := newReadySession(t)
	assert.ErrorIs(t, sess.Load(testImageURL), ErrAlreadyLoaded)
	assert.ErrorIs(t, sess.Degrade(ErrNoImage), ErrAlreadyLoaded)
}

func TestMissingImageDegradesSession(t *testing.T) {
	host := render.NewHost(nil)
	sess, err := NewSession(host, staticLoader(nil), 600, 420)
	require.NoError(t, err)
	defer sess.Dispose()

	require.NoError(t, sess.Load(""))
	require.NoError(t, sess.Wait(waitCtx(t)))

	st := sess.Status()
	assert.Equal(t, StateReady, st.State)
	assert.True(t, st.Degraded)
	assert.Equal(t, "No image provided", st.Warning)
	assert.Nil(t, st.Image)
	assert.ErrorIs(t, sess.LoadError(), ErrNoImage)

	// a degraded session still edits and exports
	_, err = sess.AddText("caption")
	require.NoError(t, err)
	_, err = sess.ExportPNG()
	require.NoError(t, err)
}

func TestDecodeFailureDegradesSession(t *testing.T) {
	host := render.NewHost(nil)
	loader := LoaderFunc(func(ctx context.Context, u string) (image.Image, error) {
		return nil, &DecodeError{URL: u, Err: errors.New("bad data")}
	})
	sess, err := NewSession(host, loader, 600, 420)
	require.NoError(t, err)
	defer sess.Dispose()

	require.NoError(t, sess.Load(testImageURL))
	require.NoError(t, sess.Wait(waitCtx(t)))

	st := sess.Status()
	assert.True(t, st.Degraded)
	assert.Equal(t, "Failed to load image", st.Warning)

	var decodeErr *DecodeError
	require.ErrorAs(t, sess.LoadError(), &decodeErr)
	assert.Equal(t, testImageURL, decodeErr.URL)
}

func TestDisposeReleasesSurfaceAndListeners(t *testing.T) {
	sess, host := newReadySession(t)
	var log eventLog
	sess.Subscribe(log.add)

	_, err := sess.AddShape(scene.ShapeCircle)
	require.NoError(t, err)

	sess.Dispose()
	sess.Dispose()

	assert.Equal(t, 0, host.Live())
	assert.Equal(t, StateDisposed, sess.Status().State)
	assert.Equal(t, []EventType{EventObjects, EventSelection, EventState, EventDisposed}, log.types())

	_, err = sess.AddText("late")
	assert.ErrorIs(t, err, ErrSessionNotReady)
	_, err = sess.ExportPNG()
	assert.ErrorIs(t, err, ErrSessionNotReady)
	assert.ErrorIs(t, sess.Resize(300, 210), ErrSessionNotReady)

	select {
	case <-sess.Done():
	default:
		t.Fatal("done channel still open")
	}
}

func TestDisposeWhileLoadingDiscardsResult(t *testing.T) {
	host := render.NewHost(nil)
	loader, release := gatedLoader(solidImage(10, 10, blue))
	sess, err := NewSession(host, loader, 600, 420)
	require.NoError(t, err)
	require.NoError(t, sess.Load(testImageURL))

	sess.Dispose()
	close(release)

	assert.Equal(t, 0, host.Live())
	assert.ErrorIs(t, sess.Wait(waitCtx(t)), ErrSessionNotReady)
}

func TestSubscribeCancel(t *testing.T) {
	sess, _ := newReadySession(t)
	var log eventLog
	cancel := sess.Subscribe(log.add)

	_, err := sess.AddShape(scene.ShapeTriangle)
	require.NoError(t, err)
	cancel()
	_, err = sess.AddShape(scene.ShapeTriangle)
	require.NoError(t, err)

	assert.Equal(t, []EventType{EventObjects, EventSelection}, log.types())
}

func TestResizeRefitsBackgroundOnly(t *testing.T) {
	sess, _ := newReadySession(t)
	id, err := sess.AddShape(scene.ShapeRectangle)
	require.NoError(t, err)
	require.NoError(t, sess.SetTransform(id, scene.Transform{X: 400, Y: 300, ScaleX: 1, ScaleY: 1}))

	require.NoError(t, sess.Resize(300, 210))

	st := sess.Status()
	assert.Equal(t, 300, st.Width)
	assert.Equal(t, 210, st.Height)
	assert.InDelta(t, 0.35, st.Image.Scale, 1e-9)

	objs, err := sess.Objects()
	require.NoError(t, err)
	assert.Equal(t, float64(400), objs[0].Transform.X)
	assert.Equal(t, float64(300), objs[0].Transform.Y)

	data, err := sess.ExportPNG()
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 210, cfg.Height)

	assert.ErrorIs(t, sess.Resize(0, 10), render.ErrInvalidSize)
}

func TestSelectAt(t *testing.T) {
	sess, _ := newReadySession(t)
	rect, err := sess.AddShape(scene.ShapeRectangle)
	require.NoError(t, err)
	circle, err := sess.AddShape(scene.ShapeCircle)
	require.NoError(t, err)
	require.NoError(t, sess.SetTransform(circle, scene.Transform{X: 300, Y: 200, ScaleX: 1, ScaleY: 1}))

	hit, err := sess.SelectAt(60, 60, false)
	require.NoError(t, err)
	assert.Equal(t, rect, hit)

	hit, err = sess.SelectAt(330, 230, true)
	require.NoError(t, err)
	assert.Equal(t, circle, hit)
	sel, _ := sess.Selection()
	assert.Equal(t, []string{rect, circle}, sel)

	// toggling removes
	_, err = sess.SelectAt(60, 60, true)
	require.NoError(t, err)
	sel, _ = sess.Selection()
	assert.Equal(t, []string{circle}, sel)

	// the background is never selectable
	hit, err = sess.SelectAt(500, 50, false)
	require.NoError(t, err)
	assert.Empty(t, hit)
	sel, _ = sess.Selection()
	assert.Empty(t, sel)
}

func TestSetTextAndTransform(t *testing.T) {
	sess, _ := newReadySession(t)
	text, err := sess.AddText("first")
	require.NoError(t, err)
	shape, err := sess.AddShape(scene.ShapeRectangle)
	require.NoError(t, err)

	require.NoError(t, sess.SetText(text, "second"))
	assert.ErrorIs(t, sess.SetText(text, " "), ErrEmptyCaption)
	assert.ErrorIs(t, sess.SetText(shape, "x"), ErrNotEditable)
	assert.ErrorIs(t, sess.SetText("obj_missing", "x"), ErrUnknownObject)

	tr := scene.Transform{X: 10, Y: 20, Angle: 45, ScaleX: 2, ScaleY: 0.5}
	require.NoError(t, sess.SetTransform(shape, tr))
	assert.ErrorIs(t, sess.SetTransform(shape, scene.Transform{ScaleX: 0, ScaleY: 1}), ErrInvalidTransform)

	objs, err := sess.Objects()
	require.NoError(t, err)
	assert.Equal(t, "second", objs[0].Text.Content)
	assert.Equal(t, tr, objs[1].Transform)
	w, h := objs[1].EffectiveSize(0)
	assert.Equal(t, 160.0, w)
	assert.Equal(t, 25.0, h)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	sess, _ := newReadySession(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sess.AddShape(scene.ShapeCircle)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, objectIDs(t, sess), 20)
}

func TestDrawCommandsFlagSelection(t *testing.T) {
	sess, _ := newReadySession(t)
	id, err := sess.AddShape(scene.ShapePolygon)
	require.NoError(t, err)

	cmds, err := sess.DrawCommands()
	require.NoError(t, err)
	require.Len(t, cmds, 3)
	assert.Equal(t, "image", cmds[1].Op)
	assert.Equal(t, id, cmds[2].ObjectID)
	assert.True(t, cmds[2].Selected)

	bounds, err := sess.SelectionBounds()
	require.NoError(t, err)
	assert.Equal(t, 80.0, bounds.Width)
	assert.Equal(t, 75.0, bounds.Height)
}
