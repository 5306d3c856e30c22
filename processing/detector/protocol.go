package detector

import (
	"coralcam/internal/models"

	"github.com/google/uuid"
)

// Message types exchanged with the inference server. Frames travel as binary
// JPEG messages; everything else is a JSON text message.
const (
	MsgSetEngine   = "set_engine"
	MsgResults     = "results"
	MsgEngineReady = "engine_ready"
	MsgError       = "error"
)

type ControlMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Task      string `json:"task"`
	Model     string `json:"model"`
	ModelPath string `json:"model_path"`
	EdgeTPU   bool   `json:"edgetpu"`
}

func NewSetEngineMsg(cfg models.EngineConfig, modelPath string) ControlMessage {
	return ControlMessage{
		Type:      MsgSetEngine,
		RequestID: uuid.New().String(),
		Task:      cfg.Task,
		Model:     cfg.Model,
		ModelPath: modelPath,
		EdgeTPU:   cfg.EdgeTPU,
	}
}

type ServerMessage struct {
	Type      string                   `json:"type"`
	RequestID string                   `json:"request_id,omitempty"`
	Results   []models.DetectionResult `json:"results,omitempty"`

	// engine_ready
	InputWidth  int `json:"input_width,omitempty"`
	InputHeight int `json:"input_height,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}
