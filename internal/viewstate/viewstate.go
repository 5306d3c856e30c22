// Package viewstate holds the settings panel flag and the window size it implies.
package viewstate

import "sync"

// Presets are the two window sizes the settings panel switches between.
type Presets struct {
	Width           int
	CollapsedHeight int
	ExpandedHeight  int
}

type State struct {
	mu sync.RWMutex

	presets      Presets
	panelVisible bool
	width        int
	height       int
}

// New starts with the panel hidden and the window at the collapsed preset.
func New(p Presets) *State {
	return &State{
		presets: p,
		width:   p.Width,
		height:  p.CollapsedHeight,
	}
}

func (s *State) PanelVisible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.panelVisible
}

// WindowSize is the size the window must always be forced back to.
func (s *State) WindowSize() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// Toggle flips the panel and moves the window to the matching preset.
func (s *State) Toggle() (visible bool, width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.panelVisible = !s.panelVisible
	s.width = s.presets.Width
	if s.panelVisible {
		s.height = s.presets.ExpandedHeight
	} else {
		s.height = s.presets.CollapsedHeight
	}
	return s.panelVisible, s.width, s.height
}
