package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type SourceType string

const (
	SourceLocal  SourceType = "Local"
	SourceWebcam SourceType = "Web-Camera"

	DefaultConfigPath   string = "config.json"
	DefaultDetectorHost string = "localhost:8080"
)

var SourcesList = [...]string{
	string(SourceLocal),
	string(SourceWebcam),
}

type LocalConfig struct {
	Path string `json:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id"`
}

// DetectorConfig points at the remote inference server.
type DetectorConfig struct {
	Host        string `json:"host"`
	InputWidth  uint   `json:"input_width"`
	InputHeight uint   `json:"input_height"`
}

// ModelConfig locates model files and label files on the inference host.
type ModelConfig struct {
	Dir                  string `json:"dir"`
	DetectionLabels      string `json:"detection_labels"`
	ClassificationLabels string `json:"classification_labels"`
}

// EngineDefaults is the selection pushed on startup.
type EngineDefaults struct {
	Task    string `json:"task"`
	Model   string `json:"model"`
	EdgeTPU bool   `json:"edgetpu"`
}

// WindowConfig holds the two window presets the settings toggle switches between.
type WindowConfig struct {
	Width           int `json:"width"`
	CollapsedHeight int `json:"collapsed_height"`
	ExpandedHeight  int `json:"expanded_height"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource  SourceType `json:"active_source"`
	TargetFPS     uint       `json:"target_fps"`
	CaptureWidth  int        `json:"capture_width"`
	CaptureHeight int        `json:"capture_height"`

	Local  LocalConfig  `json:"local"`
	Webcam WebcamConfig `json:"webcam"`

	Detector DetectorConfig `json:"detector"`
	Models   ModelConfig    `json:"models"`
	Engine   EngineDefaults `json:"engine"`
	Window   WindowConfig   `json:"window"`

	LogLevel string `json:"log_level"`
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CaptureWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CaptureWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CaptureHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CaptureHeight = height
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

// SetEngine remembers the last engine selection so the next launch starts with it.
func (c *Config) SetEngine(e EngineDefaults) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Engine = e
}

func (c *Config) GetEngine() EngineDefaults {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Engine
}

func (c *Config) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs []error
	if c.TargetFPS == 0 {
		errs = append(errs, errors.New("target_fps must be positive"))
	}
	if c.CaptureWidth <= 0 || c.CaptureHeight <= 0 {
		errs = append(errs, fmt.Errorf("capture size %dx%d must be positive", c.CaptureWidth, c.CaptureHeight))
	}
	if c.Window.Width <= 0 || c.Window.CollapsedHeight <= 0 || c.Window.ExpandedHeight <= 0 {
		errs = append(errs, errors.New("window presets must be positive"))
	}
	if c.Detector.Host == "" {
		errs = append(errs, errors.New("detector host is empty"))
	}
	return errors.Join(errs...)
}

func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	c.mu.RLock()
	defer c.mu.RUnlock()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func (c *Config) SaveByDefault() error {
	return c.Save(DefaultConfigPath)
}

// LoadConfigFile never fails: a missing or broken file yields the defaults,
// with fields present in the file overriding them.
func LoadConfigFile(path string) *Config {
	cfg := NewDefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return NewDefaultConfig()
	}

	return cfg
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource:  SourceWebcam,
		Local:         LocalConfig{Path: ""},
		Webcam:        WebcamConfig{DeviceID: "/dev/video0"},
		TargetFPS:     24,
		CaptureWidth:  1280,
		CaptureHeight: 720,
		Detector: DetectorConfig{
			Host:        DefaultDetectorHost,
			InputWidth:  640,
			InputHeight: 360,
		},
		Models: ModelConfig{
			Dir:                  "test_data",
			DetectionLabels:      "coco_labels.txt",
			ClassificationLabels: "imagenet_labels.txt",
		},
		Engine: EngineDefaults{
			Task:  "classification",
			Model: "MobileNet V1",
		},
		Window: WindowConfig{
			Width:           1280,
			CollapsedHeight: 770,
			ExpandedHeight:  870,
		},
		LogLevel: "info",
	}
}
