package main

import (
	"context"
	"path/filepath"

	"coralcam/internal/config"
	"coralcam/internal/controller"
	"coralcam/internal/logging"
	"coralcam/internal/models"
	"coralcam/internal/ui"
	"coralcam/internal/viewstate"
	"coralcam/processing/bridge"
	"coralcam/processing/detector"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfigFile(config.DefaultConfigPath)

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Warn("invalid config, using defaults", zap.Error(err))
		cfg = config.NewDefaultConfig()
	}

	det := detector.NewRemoteDetector(cfg.Detector.Host, cfg.Detector.InputWidth, cfg.Detector.InputHeight, log)
	det.Start(context.Background())
	defer det.Stop()

	proc := detector.NewProcessor(det, cfg.GetFPS(), log)
	proc.SetLabels(loadLabels(cfg, log))

	backend := bridge.New(cfg, det, proc, log)
	defer backend.Close()

	state := viewstate.New(viewstate.Presets{
		Width:           cfg.Window.Width,
		CollapsedHeight: cfg.Window.CollapsedHeight,
		ExpandedHeight:  cfg.Window.ExpandedHeight,
	})

	app := ui.CreateApp(cfg, proc, log)
	ctrl := controller.New(app, backend, state)
	ctrl.Attach()
	app.Bind(ctrl)

	app.Run()
}

// loadLabels reads the label files if present. Servers that send label names
// make them optional.
func loadLabels(cfg *config.Config, log *zap.Logger) (models.Labels, models.Labels) {
	det, err := models.ReadDetectionLabels(filepath.Join(cfg.Models.Dir, cfg.Models.DetectionLabels))
	if err != nil {
		log.Info("detection labels unavailable", zap.Error(err))
	}
	cls, err := models.ReadClassificationLabels(filepath.Join(cfg.Models.Dir, cfg.Models.ClassificationLabels))
	if err != nil {
		log.Info("classification labels unavailable", zap.Error(err))
	}
	return det, cls
}
