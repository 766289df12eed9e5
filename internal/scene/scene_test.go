package scene

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitScale(t *testing.T) {
	// width ratio 0.75, height ratio 0.666..: the smaller one wins
	assert.InDelta(t, 2.0/3.0, FitScale(600, 400, 800, 600), 1e-9)
	assert.InDelta(t, 0.5, FitScale(600, 420, 1200, 400), 1e-9)
	assert.InDelta(t, 3.0, FitScale(600, 420, 200, 100), 1e-9)
	assert.Equal(t, 1.0, FitScale(600, 420, 0, 0))
}

func TestSetImageAnchorsAndScales(t *testing.T) {
	s := New(600, 400)
	s.SetImage("https://img.test/x", 800, 600)

	w, h := s.Image.ScaledSize()
	assert.InDelta(t, 533.333, w, 1e-3)
	assert.InDelta(t, 400, h, 1e-9)
}

func TestResizeRefitsBackgroundButNotObjects(t *testing.T) {
	s := New(600, 420)
	s.SetImage("src", 1200, 840)
	rect, _ := NewShape("r", ShapeRectangle)
	s.Append(rect)

	s.Resize(300, 210)

	assert.InDelta(t, 0.25, s.Image.Scale, 1e-9)
	assert.Equal(t, Transform{X: 50, Y: 50, ScaleX: 1, ScaleY: 1}, s.Objects[0].Transform)
}

func TestRemoveKeepsOrder(t *testing.T) {
	s := New(100, 70)
	for i := 0; i < 5; i++ {
		s.Append(NewText(fmt.Sprintf("t%d", i), "x"))
	}

	n := s.Remove([]string{"t1", "t3", "missing"})
	assert.Equal(t, 2, n)

	var ids []string
	for _, o := range s.Objects {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"t0", "t2", "t4"}, ids)
	assert.Equal(t, -1, s.Index("t1"))
	assert.NotNil(t, s.Object("t4"))
}

func TestShapeDefaults(t *testing.T) {
	cases := []struct {
		kind  ShapeKind
		typ   ObjectType
		fill  string
		w, h  float64
		noErr bool
	}{
		{ShapeRectangle, ObjectTypeRectangle, "blue", 80, 50, true},
		{ShapeTriangle, ObjectTypeTriangle, "green", 80, 60, true},
		{ShapeCircle, ObjectTypeCircle, "red", 60, 60, true},
		{ShapePolygon, ObjectTypePolygon, "orange", 80, 75, true},
	}
	for _, c := range cases {
		obj, ok := NewShape("id", c.kind)
		require.True(t, ok, c.kind.String())
		assert.Equal(t, c.typ, obj.Type)
		assert.Equal(t, c.fill, obj.Fill)
		assert.True(t, obj.Selectable)
		w, h := obj.BaseSize(0)
		assert.Equal(t, c.w, w, c.kind.String())
		assert.Equal(t, c.h, h, c.kind.String())
		assert.Equal(t, 50.0, obj.Transform.X)
		assert.Equal(t, 50.0, obj.Transform.Y)
	}

	_, ok := NewShape("id", ShapeKind(42))
	assert.False(t, ok)
}

func TestEffectiveSizeIsBaseTimesScale(t *testing.T) {
	obj, _ := NewShape("r", ShapeRectangle)
	obj.Transform.ScaleX = 2
	obj.Transform.ScaleY = 0.5
	w, h := obj.EffectiveSize(0)
	assert.Equal(t, 160.0, w)
	assert.Equal(t, 25.0, h)

	txt := NewText("t", "hello")
	txt.Transform.ScaleY = 3
	w, h = txt.EffectiveSize(23.2)
	assert.Equal(t, 200.0, w)
	assert.InDelta(t, 69.6, h, 1e-9)
}

func TestParseShapeKind(t *testing.T) {
	for _, k := range ShapeKinds {
		parsed, err := ParseShapeKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	k, err := ParseShapeKind(" Rect ")
	require.NoError(t, err)
	assert.Equal(t, ShapeRectangle, k)

	_, err = ParseShapeKind("hexagon")
	assert.ErrorIs(t, err, ErrUnknownShapeKind)
}

func TestShapeKindJSON(t *testing.T) {
	var req struct {
		Kind ShapeKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"kind":"circle"}`), &req))
	assert.Equal(t, ShapeCircle, req.Kind)

	err := json.Unmarshal([]byte(`{"kind":"star"}`), &req)
	assert.ErrorIs(t, err, ErrUnknownShapeKind)

	_, err = json.Marshal(struct{ K ShapeKind }{ShapeKind(9)})
	assert.Error(t, err)
}

func TestNormalizeCaption(t *testing.T) {
	s, ok := NormalizeCaption("café")
	assert.True(t, ok)
	assert.Equal(t, "café", s)

	_, ok = NormalizeCaption(" \t\n")
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	s := New(10, 7)
	s.SetImage("src", 10, 7)
	poly, _ := NewShape("p", ShapePolygon)
	s.Append(poly)
	s.Append(NewText("t", "hi"))

	c := s.Clone()
	c.Objects[0].Points[0].X = 999
	c.Objects[1].Text.Content = "changed"
	c.Image.Scale = 9

	assert.Equal(t, 40.0, s.Objects[0].Points[0].X)
	assert.Equal(t, "hi", s.Objects[1].Text.Content)
	assert.Equal(t, 1.0, s.Image.Scale)
}
