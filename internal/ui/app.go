package ui

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"strings"
	"time"

	"coralcam/internal/config"
	"coralcam/internal/controller"
	"coralcam/internal/models"
	"coralcam/internal/ui/cwidget"
	"coralcam/processing/capture"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"
)

const logHeight = 140

// Stats is the live pipeline telemetry shown above the video.
type Stats interface {
	FPS() uint
	Latency() time.Duration
}

// DetectApp is the fyne implementation of controller.View.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	stats  Stats
	log    *zap.Logger
	ctrl   *controller.Controller

	menuButton     *widget.Button
	settingsPanel  *fyne.Container
	sourceSettings *fyne.Container

	taskSelect   *widget.Select
	modelSelect  *widget.Select
	edgeTPUCheck *widget.Check

	widthInput  *cwidget.Input[uint]
	heightInput *cwidget.Input[uint]

	videoCanvas  *canvas.Image
	logLabel     *widget.Label
	logScroll    *container.Scroll
	latencyLabel *widget.Label
	fpsLabel     *widget.Label
}

func CreateApp(cfg *config.Config, stats Stats, log *zap.Logger) *DetectApp {
	return newDetectApp(app.NewWithID("io.coralcam.desktop"), cfg, stats, log)
}

func newDetectApp(a fyne.App, cfg *config.Config, stats Stats, log *zap.Logger) *DetectApp {
	d := &DetectApp{
		fyneApp: a,
		mainWin: a.NewWindow("Coral Camera"),
		config:  cfg,
		stats:   stats,
		log:     log.Named("ui"),
	}
	d.build()
	return d
}

// Bind connects the widgets to the controller. Must be called before Run.
func (a *DetectApp) Bind(ctrl *controller.Controller) {
	a.ctrl = ctrl

	engine := a.config.GetEngine()
	a.taskSelect.SetSelected(engine.Task)
	if a.taskSelect.Selected == "" {
		a.taskSelect.SetSelected(models.TaskList[0])
	}
	for _, m := range a.modelSelect.Options {
		if m == engine.Model {
			a.modelSelect.SetSelected(m)
		}
	}
	a.edgeTPUCheck.SetChecked(engine.EdgeTPU)

	w, h := ctrl.State().WindowSize()
	a.ResizeWindow(w, h)
	a.SetSettingsVisible(ctrl.State().PanelVisible())
}

func (a *DetectApp) build() {
	a.menuButton = widget.NewButtonWithIcon("", theme.MenuIcon(), func() {
		a.ctrl.ToggleSettingMenu()
	})

	a.taskSelect = widget.NewSelect(models.TaskList[:], func(s string) {
		if a.ctrl != nil {
			a.ctrl.InferenceSelectionChanged(s)
		}
	})
	a.modelSelect = widget.NewSelect(nil, nil)
	a.edgeTPUCheck = widget.NewCheck("Edge TPU", nil)

	applyEngine := widget.NewButtonWithIcon("Set Engine", theme.ConfirmIcon(), func() {
		a.ctrl.SetInferenceEngine()
	})

	a.sourceSettings = container.NewVBox()
	sourceSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSourceSettings(config.SourceType(s))
	})

	fpsInput := cwidget.NewUintInput("FPS", "Enter integer", a.config.GetFPS(), 1, 60, a.config.SetFPS)
	a.widthInput = cwidget.NewUintInput("Width", "Enter integer", uint(a.config.GetWidth()), 160, 3840, func(v uint) {
		a.config.SetWidth(int(v))
	})
	a.heightInput = cwidget.NewUintInput("Height", "Enter integer", uint(a.config.GetHeight()), 120, 2160, func(v uint) {
		a.config.SetHeight(int(v))
	})

	restart := widget.NewButtonWithIcon("Restart Stream", theme.MediaReplayIcon(), func() {
		if err := a.config.Validate(); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.ctrl.OnStart()
	})

	a.settingsPanel = container.NewVBox(
		widget.NewLabelWithStyle("Inference", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWithColumns(4, a.taskSelect, a.modelSelect, a.edgeTPUCheck, applyEngine),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Capture", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewGridWithColumns(3, sourceSelect, a.sourceSettings, container.NewVBox(fpsInput, restart)),
		container.NewGridWithColumns(3, a.widthInput, a.heightInput),
	)
	sourceSelect.SetSelected(string(a.config.GetSource()))

	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 360))

	a.latencyLabel = widget.NewLabel(formatLatency(0))
	a.fpsLabel = widget.NewLabel(formatFPS(0))

	a.logLabel = widget.NewLabel("")
	a.logLabel.TextStyle = fyne.TextStyle{Monospace: true}
	a.logLabel.Wrapping = fyne.TextWrapWord
	a.logScroll = container.NewVScroll(a.logLabel)
	a.logScroll.SetMinSize(fyne.NewSize(0, logHeight))

	top := container.NewVBox(
		container.NewHBox(a.menuButton, a.fpsLabel, widget.NewSeparator(), a.latencyLabel),
		a.settingsPanel,
	)

	content := container.NewBorder(top, a.logScroll, nil, nil, a.videoCanvas)
	a.mainWin.SetContent(container.New(&resizeWatcher{onResize: a.windowResized}, content))
}

func (a *DetectApp) windowResized(fyne.Size) {
	if a.ctrl == nil {
		return
	}
	// Resizing from inside a layout pass would re-enter it.
	go fyne.Do(a.ctrl.OnWindowResized)
}

// Run shows the window and blocks until it is closed.
func (a *DetectApp) Run() {
	stop := make(chan struct{})

	a.fyneApp.Lifecycle().SetOnStarted(func() {
		a.ctrl.OnStart()
		go a.runStatLoop(stop)
	})

	a.mainWin.SetCloseIntercept(func() {
		close(stop)
		if err := a.config.SaveByDefault(); err != nil {
			a.log.Warn("saving config failed", zap.Error(err))
		}
		a.mainWin.Close()
	})

	a.mainWin.ShowAndRun()
}

func (a *DetectApp) runStatLoop(stop <-chan struct{}) {
	uiTicker := time.NewTicker(200 * time.Millisecond)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			fps, latency := a.stats.FPS(), a.stats.Latency()
			fyne.Do(func() {
				a.latencyLabel.SetText(formatLatency(latency))
				a.fpsLabel.SetText(formatFPS(fps))
			})
		case <-stop:
			return
		}
	}
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func (a *DetectApp) refreshSourceSettings(source config.SourceType) {
	a.sourceSettings.Objects = nil

	switch source {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.Local.Path)
		pathEntry.OnChanged = func(s string) {
			a.config.Local.Path = s
		}

		fileBtn := widget.NewButtonWithIcon("", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					pathEntry.SetText(reader.URI().Path())
					reader.Close()
				}
			}, a.mainWin)
		})

		a.sourceSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect(nil, func(s string) {
			a.config.Webcam.DeviceID = s
		})
		deviceSelect.PlaceHolder = "Loading cameras..."
		deviceSelect.Disable()
		a.sourceSettings.Add(deviceSelect)

		go func() {
			devices, err := capture.ListCameras()

			fyne.Do(func() {
				switch {
				case err != nil:
					dialog.ShowError(err, a.mainWin)
					deviceSelect.PlaceHolder = "Error listing cameras"
				case len(devices) == 0:
					deviceSelect.PlaceHolder = "No cameras found"
				default:
					deviceSelect.Options = devices
					deviceSelect.Enable()
					if a.config.Webcam.DeviceID != "" {
						deviceSelect.SetSelected(a.config.Webcam.DeviceID)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()
	}

	a.sourceSettings.Refresh()
}

func (a *DetectApp) SetSettingsVisible(visible bool) {
	if visible {
		a.settingsPanel.Show()
		a.menuButton.SetIcon(theme.CancelIcon())
	} else {
		a.settingsPanel.Hide()
		a.menuButton.SetIcon(theme.MenuIcon())
	}
}

func (a *DetectApp) ResizeWindow(width, height int) {
	a.mainWin.Resize(fyne.NewSize(float32(width), float32(height)))
}

// SetImageSource may be called from the capture goroutine.
func (a *DetectApp) SetImageSource(src string) {
	img, err := decodeDataURI(src)
	if err != nil {
		a.log.Warn("dropping frame", zap.Error(err))
		return
	}
	fyne.Do(func() {
		a.videoCanvas.Image = img
		a.videoCanvas.Refresh()
	})
}

func (a *DetectApp) AppendLogLine(line string) {
	fyne.Do(func() {
		a.logLabel.SetText(a.logLabel.Text + line + "\n")
	})
}

func (a *DetectApp) ScrollLogToBottom() {
	fyne.Do(a.logScroll.ScrollToBottom)
}

// SetModelOptions replaces the model list and selects its first entry.
func (a *DetectApp) SetModelOptions(options []string) {
	a.modelSelect.Options = options
	a.modelSelect.ClearSelected()
	if len(options) > 0 {
		a.modelSelect.SetSelected(options[0])
	}
	a.modelSelect.Refresh()
}

func (a *DetectApp) SelectedTask() string      { return a.taskSelect.Selected }
func (a *DetectApp) SelectedModel() string     { return a.modelSelect.Selected }
func (a *DetectApp) AccelerationEnabled() bool { return a.edgeTPUCheck.Checked }

var errNotJPEGURI = errors.New("not a base64 JPEG data URI")

func decodeDataURI(src string) (image.Image, error) {
	payload, ok := strings.CutPrefix(src, controller.FramePrefix)
	if !ok {
		return nil, errNotJPEGURI
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// resizeWatcher lays out a single child at full size and reports size changes.
type resizeWatcher struct {
	last     fyne.Size
	onResize func(fyne.Size)
}

func (r *resizeWatcher) Layout(objects []fyne.CanvasObject, size fyne.Size) {
	for _, o := range objects {
		o.Move(fyne.NewPos(0, 0))
		o.Resize(size)
	}
	if size != r.last {
		r.last = size
		r.onResize(size)
	}
}

func (r *resizeWatcher) MinSize(objects []fyne.CanvasObject) fyne.Size {
	size := fyne.NewSize(0, 0)
	for _, o := range objects {
		size = size.Max(o.MinSize())
	}
	return size
}
