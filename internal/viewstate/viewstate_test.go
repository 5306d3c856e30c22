package viewstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testPresets = Presets{Width: 1280, CollapsedHeight: 770, ExpandedHeight: 870}

func TestInitialState(t *testing.T) {
	s := New(testPresets)

	assert.False(t, s.PanelVisible())
	w, h := s.WindowSize()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 770, h)
}

func TestToggleAlternatesPresets(t *testing.T) {
	s := New(testPresets)

	visible, w, h := s.Toggle()
	assert.True(t, visible)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 870, h)

	visible, w, h = s.Toggle()
	assert.False(t, visible)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 770, h)
}

func TestEvenTogglesRestoreState(t *testing.T) {
	for _, n := range []int{0, 2, 4, 10} {
		s := New(testPresets)
		w0, h0 := s.WindowSize()
		v0 := s.PanelVisible()

		for i := 0; i < n; i++ {
			s.Toggle()
		}

		w, h := s.WindowSize()
		assert.Equal(t, v0, s.PanelVisible(), "after %d toggles", n)
		assert.Equal(t, w0, w, "after %d toggles", n)
		assert.Equal(t, h0, h, "after %d toggles", n)
	}
}
