package detector

import (
	"fmt"
	"image"
	"sync"
	"time"

	"coralcam/internal/models"
	"coralcam/processing/capture"

	"go.uber.org/zap"
)

// Processor pulls frames from a streamer, feeds them to the detector and
// draws the latest results on a copy of each frame.
type Processor struct {
	OutImageStream chan image.Image
	ErrChan        chan error

	det *RemoteDetector
	log *zap.Logger

	detectionLabels      models.Labels
	classificationLabels models.Labels

	mu          sync.RWMutex
	stopChan    chan struct{}
	active      bool
	latency     time.Duration
	fps         uint
	task        models.Task
	modelFile   string
	inputSize   string
	lastResults []models.DetectionResult
}

func NewProcessor(det *RemoteDetector, fps uint, log *zap.Logger) *Processor {
	if fps == 0 {
		fps = 1
	}
	return &Processor{
		det:            det,
		log:            log.Named("processor"),
		ErrChan:        make(chan error, 1),
		OutImageStream: make(chan image.Image, fps),
		task:           models.TaskClassification,
	}
}

// SetLabels installs the label tables used when results only carry a class index.
func (p *Processor) SetLabels(detection, classification models.Labels) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detectionLabels = detection
	p.classificationLabels = classification
}

// SetEngine switches the drawing mode and drops results from the previous model.
func (p *Processor) SetEngine(task models.Task, modelFile string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.task = task
	p.modelFile = modelFile
	p.inputSize = ""
	p.lastResults = nil
}

func (p *Processor) SetInputSize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputSize = fmt.Sprintf("%dx%d", width, height)
}

func (p *Processor) IsActive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

func (p *Processor) Latency() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latency
}

func (p *Processor) FPS() uint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fps
}

func (p *Processor) Start(in capture.VideoStreamer) {
	p.mu.Lock()
	p.stopChan = make(chan struct{})
	p.active = true
	stop := p.stopChan
	p.mu.Unlock()

	go p.collectResults(stop)
	go p.run(in, stop)
}

func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		close(p.stopChan)
		p.active = false
	}
}

func (p *Processor) collectResults(stop <-chan struct{}) {
	for {
		select {
		case results := <-p.det.OutputResult:
			p.mu.Lock()
			p.lastResults = results
			p.mu.Unlock()
		case <-stop:
			return
		}
	}
}

func (p *Processor) run(in capture.VideoStreamer, stop <-chan struct{}) {
	defer p.markInactive(stop)

	var frameCount uint
	lastFpsUpdate := time.Now()

	for {
		select {
		case frame, ok := <-in.FrameChan():
			if !ok {
				return
			}
			if frame == nil {
				continue
			}

			start := time.Now()
			p.det.Submit(frame)
			out := p.annotate(frame)

			p.mu.Lock()
			p.latency = time.Since(start)
			p.mu.Unlock()

			select {
			case p.OutImageStream <- out:
			default:
			}

			frameCount++
			if time.Since(lastFpsUpdate) >= time.Second {
				p.mu.Lock()
				p.fps = frameCount
				p.mu.Unlock()
				frameCount = 0
				lastFpsUpdate = time.Now()
			}

		case err, ok := <-in.ErrorChan():
			if !ok {
				return
			}
			p.log.Warn("streamer error", zap.Error(err))
			select {
			case p.ErrChan <- err:
			default:
			}
			return

		case <-stop:
			return
		}
	}
}

func (p *Processor) markInactive(stop <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// A newer Start owns the flag once the stop channel has been replaced.
	if p.stopChan == stop && p.active {
		close(p.stopChan)
		p.active = false
	}
}

func (p *Processor) annotate(frame image.Image) image.Image {
	p.mu.RLock()
	task := p.task
	results := p.lastResults
	modelFile, inputSize := p.modelFile, p.inputSize
	detLabels, clsLabels := p.detectionLabels, p.classificationLabels
	p.mu.RUnlock()

	img := cloneRGBA(frame)

	switch task {
	case models.TaskDetection:
		annotateDetections(img, results, detLabels)
	case models.TaskClassification:
		annotateClassification(img, results, clsLabels)
	}
	overlayModelInfo(img, modelFile, inputSize)

	return img
}
