package controller

import (
	"strings"
	"testing"
	"time"

	"coralcam/internal/models"
	"coralcam/internal/viewstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeView struct {
	visible  bool
	sizes    [][2]int
	src      string
	log      []string
	scrolled int
	options  []string

	task    string
	model   string
	edgetpu bool
}

func (v *fakeView) SetSettingsVisible(visible bool) { v.visible = visible }
func (v *fakeView) ResizeWindow(w, h int)           { v.sizes = append(v.sizes, [2]int{w, h}) }
func (v *fakeView) SetImageSource(src string)       { v.src = src }
func (v *fakeView) AppendLogLine(line string)       { v.log = append(v.log, line) }
func (v *fakeView) ScrollLogToBottom()              { v.scrolled++ }
func (v *fakeView) SelectedTask() string            { return v.task }
func (v *fakeView) SelectedModel() string           { return v.model }
func (v *fakeView) AccelerationEnabled() bool       { return v.edgetpu }

// SetModelOptions mimics a select element: the first option becomes selected.
func (v *fakeView) SetModelOptions(options []string) {
	v.options = options
	v.model = ""
	if len(options) > 0 {
		v.model = options[0]
	}
}

type fakeBackend struct {
	calls   []string
	engines []models.EngineConfig
	onFrame func(string)
	onLog   func(string)
}

func (b *fakeBackend) StartVideoStream() { b.calls = append(b.calls, "video") }
func (b *fakeBackend) SetEngine(cfg models.EngineConfig) {
	b.calls = append(b.calls, "engine")
	b.engines = append(b.engines, cfg)
}
func (b *fakeBackend) OnFrame(fn func(string)) { b.onFrame = fn }
func (b *fakeBackend) OnLog(fn func(string))   { b.onLog = fn }

func newTestController() (*Controller, *fakeView, *fakeBackend) {
	v := &fakeView{}
	b := &fakeBackend{}
	c := New(v, b, viewstate.New(viewstate.Presets{Width: 1280, CollapsedHeight: 770, ExpandedHeight: 870}))
	c.now = func() time.Time {
		return time.Date(2026, 10, 19, 14, 30, 5, 0, time.FixedZone("CEST", 2*3600))
	}
	return c, v, b
}

func TestToggleSettingMenu(t *testing.T) {
	c, v, _ := newTestController()

	c.ToggleSettingMenu()
	assert.True(t, v.visible)
	assert.Equal(t, [2]int{1280, 870}, v.sizes[len(v.sizes)-1])

	c.ToggleSettingMenu()
	assert.False(t, v.visible)
	assert.Equal(t, [2]int{1280, 770}, v.sizes[len(v.sizes)-1])
	assert.Len(t, v.sizes, 2)
}

func TestEvenTogglesRestoreWindow(t *testing.T) {
	c, v, _ := newTestController()
	w0, h0 := c.State().WindowSize()

	for i := 0; i < 6; i++ {
		c.ToggleSettingMenu()
	}

	w, h := c.State().WindowSize()
	assert.False(t, c.State().PanelVisible())
	assert.False(t, v.visible)
	assert.Equal(t, w0, w)
	assert.Equal(t, h0, h)
}

func TestOnWindowResizedForcesStoredSize(t *testing.T) {
	c, v, _ := newTestController()
	c.ToggleSettingMenu()

	c.OnWindowResized()
	assert.Equal(t, [2]int{1280, 870}, v.sizes[len(v.sizes)-1])
}

func TestInferenceSelectionChanged(t *testing.T) {
	c, v, b := newTestController()

	for _, task := range models.TaskList {
		c.InferenceSelectionChanged(task)
		assert.Equal(t, models.ModelsFor(task), v.options, "task %s", task)
	}

	c.InferenceSelectionChanged("classification")
	c.InferenceSelectionChanged("detection")
	assert.Equal(t, []string{
		"SSD MobileNet V1",
		"SSD MobileNet V2",
		"SSDLite MobileDet",
		"EfficientDet-Lite0",
		"EfficientDet-Lite1",
		"EfficientDet-Lite2",
		"EfficientDet-Lite3",
	}, v.options)
	assert.Empty(t, b.calls)
}

func TestInferenceSelectionChangedUnknownUsesLastTask(t *testing.T) {
	c, v, _ := newTestController()

	c.InferenceSelectionChanged("unknown")
	assert.Equal(t, models.ModelsFor("segmentation"), v.options)
}

func TestUpdateImageSrc(t *testing.T) {
	c, v, _ := newTestController()

	c.UpdateImageSrc("abcd")
	assert.Equal(t, "data:image/jpeg;base64,abcd", v.src)

	c.UpdateImageSrc("efgh")
	assert.Equal(t, "data:image/jpeg;base64,efgh", v.src)
}

func TestUpdateLogAppendsTimestampedLine(t *testing.T) {
	c, v, _ := newTestController()

	c.UpdateLog("starting")
	c.UpdateLog("ready")

	require.Len(t, v.log, 2)
	assert.Equal(t, "Mon, 19 Oct 2026 12:30:05 UTC starting", v.log[0])
	assert.True(t, strings.HasSuffix(v.log[1], "ready"))
	assert.True(t, strings.HasPrefix(v.log[1], "Mon, 19 Oct 2026 12:30:05 UTC"))
	assert.Equal(t, 2, v.scrolled)
}

func TestSetInferenceEngineForwardsSelection(t *testing.T) {
	c, v, b := newTestController()
	v.task = "pose-estimation"
	v.model = "not a real model"
	v.edgetpu = true

	c.SetInferenceEngine()

	require.Len(t, b.engines, 1)
	assert.Equal(t, models.EngineConfig{Task: "pose-estimation", Model: "not a real model", EdgeTPU: true}, b.engines[0])
}

func TestOnStartSetsEngineBeforeVideo(t *testing.T) {
	c, v, b := newTestController()
	v.task = "classification"
	c.InferenceSelectionChanged(v.task)

	c.OnStart()

	assert.Equal(t, []string{"engine", "video"}, b.calls)
	assert.Equal(t, models.EngineConfig{Task: "classification", Model: "MobileNet V1"}, b.engines[0])
}

func TestAttachRoutesBackendCallbacks(t *testing.T) {
	c, v, b := newTestController()
	c.Attach()

	require.NotNil(t, b.onFrame)
	require.NotNil(t, b.onLog)

	b.onFrame("zz")
	b.onLog("engine ready")

	assert.Equal(t, "data:image/jpeg;base64,zz", v.src)
	require.Len(t, v.log, 1)
	assert.True(t, strings.HasSuffix(v.log[0], "engine ready"))
}

func TestDetectionThenCollapse(t *testing.T) {
	c, v, _ := newTestController()
	c.ToggleSettingMenu()

	v.task = "detection"
	c.InferenceSelectionChanged(v.task)
	assert.Equal(t, models.ModelsFor("detection"), v.options)

	c.ToggleSettingMenu()
	assert.False(t, v.visible)
	assert.Equal(t, [2]int{1280, 770}, v.sizes[len(v.sizes)-1])
}
