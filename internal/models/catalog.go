package models

import (
	"errors"
	"fmt"
	"path/filepath"
)

type Task string

const (
	TaskClassification Task = "classification"
	TaskDetection      Task = "detection"
	TaskPoseEstimation Task = "pose-estimation"
	TaskSegmentation   Task = "segmentation"
)

var ErrUnknownModel = errors.New("unknown model")

// TaskList is the order the task selector shows. The last entry is the
// fallback for unrecognised task values.
var TaskList = [...]string{
	string(TaskClassification),
	string(TaskDetection),
	string(TaskPoseEstimation),
	string(TaskSegmentation),
}

var taskModels = map[Task][]string{
	TaskClassification: {
		"MobileNet V1",
		"MobileNet V2",
		"Inception V1",
		"Inception V2",
		"Inception V3",
		"Inception V4",
		"ResNet-50",
		"EfficientNet (S)",
		"EfficientNet (M)",
		"EfficientNet (L)",
	},
	TaskDetection: {
		"SSD MobileNet V1",
		"SSD MobileNet V2",
		"SSDLite MobileDet",
		"EfficientDet-Lite0",
		"EfficientDet-Lite1",
		"EfficientDet-Lite2",
		"EfficientDet-Lite3",
	},
	TaskPoseEstimation: {
		"PoseNet MobileNet V1 (S)",
		"PoseNet MobileNet V1 (M)",
		"PoseNet MobileNet V1 (L)",
		"MoveNet.SinglePose.Lightning",
		"MoveNet.SinglePose.Thunder",
	},
	TaskSegmentation: {
		"DeepLab V3 MobileNet V2",
		"DeepLab V3 MobileNet V2 (0.5)",
		"EdgeTPU-DeepLab (S)",
		"EdgeTPU-DeepLab (M)",
		"EdgeTPU-DeepLab (XS)",
		"U-Net MobileNet V2",
	},
}

var modelFiles = map[string]string{
	"MobileNet V1":                  "mobilenet_v1_1.0_224_quant_edgetpu.tflite",
	"MobileNet V2":                  "mobilenet_v2_1.0_224_quant_edgetpu.tflite",
	"Inception V1":                  "inception_v1_224_quant_edgetpu.tflite",
	"Inception V2":                  "inception_v2_224_quant_edgetpu.tflite",
	"Inception V3":                  "inception_v3_299_quant_edgetpu.tflite",
	"Inception V4":                  "inception_v4_299_quant_edgetpu.tflite",
	"ResNet-50":                     "tfhub_tf2_resnet_50_imagenet_ptq_edgetpu.tflite",
	"EfficientNet (S)":              "efficientnet-edgetpu-S_quant_edgetpu.tflite",
	"EfficientNet (M)":              "efficientnet-edgetpu-M_quant_edgetpu.tflite",
	"EfficientNet (L)":              "efficientnet-edgetpu-L_quant_edgetpu.tflite",
	"SSD MobileNet V1":              "ssd_mobilenet_v1_coco_quant_postprocess_edgetpu.tflite",
	"SSD MobileNet V2":              "ssd_mobilenet_v2_coco_quant_postprocess_edgetpu.tflite",
	"SSDLite MobileDet":             "ssdlite_mobiledet_coco_qat_postprocess_edgetpu.tflite",
	"EfficientDet-Lite0":            "efficientdet_lite0_320_ptq_edgetpu.tflite",
	"EfficientDet-Lite1":            "efficientdet_lite1_384_ptq_edgetpu.tflite",
	"EfficientDet-Lite2":            "efficientdet_lite2_448_ptq_edgetpu.tflite",
	"EfficientDet-Lite3":            "efficientdet_lite3_512_ptq_edgetpu.tflite",
	"PoseNet MobileNet V1 (S)":      "posenet/posenet_mobilenet_v1_075_353_481_16_quant_decoder_edgetpu.tflite",
	"PoseNet MobileNet V1 (M)":      "posenet/posenet_mobilenet_v1_075_481_641_16_quant_decoder_edgetpu.tflite",
	"PoseNet MobileNet V1 (L)":      "posenet/posenet_mobilenet_v1_075_721_1281_16_quant_decoder_edgetpu.tflite",
	"MoveNet.SinglePose.Lightning":  "movenet_single_pose_lightning_ptq_edgetpu.tflite",
	"MoveNet.SinglePose.Thunder":    "movenet_single_pose_thunder_ptq_edgetpu.tflite",
	"DeepLab V3 MobileNet V2":       "deeplabv3_mnv2_pascal_quant_edgetpu.tflite",
	"DeepLab V3 MobileNet V2 (0.5)": "deeplabv3_mnv2_dm05_pascal_quant_edgetpu.tflite",
	"EdgeTPU-DeepLab (S)":           "edgetpu_deeplab_257_os16_edgetpu.tflite",
	"EdgeTPU-DeepLab (M)":           "edgetpu_deeplab_257_os32_edgetpu.tflite",
	"EdgeTPU-DeepLab (XS)":          "edgetpu_deeplab_slim_257_os16_edgetpu.tflite",
	"U-Net MobileNet V2":            "keras_post_training_unet_mv2_128_quant_edgetpu.tflite",
}

// ParseTask maps a selector value to a task, falling back to the last task in TaskList.
func ParseTask(s string) Task {
	switch Task(s) {
	case TaskClassification, TaskDetection, TaskPoseEstimation:
		return Task(s)
	default:
		return TaskSegmentation
	}
}

// ModelsFor returns a fresh copy of the model names offered for a task.
func ModelsFor(task string) []string {
	list := taskModels[ParseTask(task)]
	out := make([]string, len(list))
	copy(out, list)
	return out
}

// ModelPath resolves a display name to its model file under dir.
func ModelPath(dir, name string) (string, error) {
	file, ok := modelFiles[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return filepath.Join(dir, filepath.FromSlash(file)), nil
}
