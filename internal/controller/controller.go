// Package controller drives the settings panel, the model selectors and the
// video/log display. It owns no widgets: everything visible goes through View
// and everything native goes through Backend.
package controller

import (
	"time"

	"coralcam/internal/models"
	"coralcam/internal/viewstate"
)

// FramePrefix is prepended to the base64 JPEG a backend delivers to build an image source.
const FramePrefix = "data:image/jpeg;base64,"

// Backend is the native side. Calls are fire-and-forget.
type Backend interface {
	StartVideoStream()
	SetEngine(cfg models.EngineConfig)
	OnFrame(fn func(frame string))
	OnLog(fn func(message string))
}

// View is the set of widgets the controller manipulates.
type View interface {
	SetSettingsVisible(visible bool)
	ResizeWindow(width, height int)
	SetImageSource(src string)
	AppendLogLine(line string)
	ScrollLogToBottom()
	SetModelOptions(options []string)

	SelectedTask() string
	SelectedModel() string
	AccelerationEnabled() bool
}

type Controller struct {
	view    View
	backend Backend
	state   *viewstate.State

	now func() time.Time
}

func New(view View, backend Backend, state *viewstate.State) *Controller {
	return &Controller{
		view:    view,
		backend: backend,
		state:   state,
		now:     time.Now,
	}
}

// Attach registers the frame and log callbacks with the backend.
func (c *Controller) Attach() {
	c.backend.OnFrame(c.UpdateImageSrc)
	c.backend.OnLog(c.UpdateLog)
}

func (c *Controller) State() *viewstate.State {
	return c.state
}

func (c *Controller) ToggleSettingMenu() {
	visible, w, h := c.state.Toggle()
	c.view.SetSettingsVisible(visible)
	c.view.ResizeWindow(w, h)
}

// OnWindowResized snaps the window back to the stored size.
func (c *Controller) OnWindowResized() {
	w, h := c.state.WindowSize()
	c.view.ResizeWindow(w, h)
}

// OnStart pushes the current selection and then starts the video feed.
func (c *Controller) OnStart() {
	c.SetInferenceEngine()
	c.backend.StartVideoStream()
}

func (c *Controller) UpdateImageSrc(frame string) {
	c.view.SetImageSource(FramePrefix + frame)
}

func (c *Controller) UpdateLog(message string) {
	c.view.AppendLogLine(FormatLogLine(c.now(), message))
	c.view.ScrollLogToBottom()
}

func (c *Controller) InferenceSelectionChanged(selected string) {
	c.view.SetModelOptions(models.ModelsFor(selected))
}

func (c *Controller) SetInferenceEngine() {
	c.backend.SetEngine(models.EngineConfig{
		Task:    c.view.SelectedTask(),
		Model:   c.view.SelectedModel(),
		EdgeTPU: c.view.AccelerationEnabled(),
	})
}

// FormatLogLine prefixes a message with its UTC time in RFC 1123 form.
func FormatLogLine(t time.Time, message string) string {
	return t.UTC().Format(time.RFC1123) + " " + message
}
