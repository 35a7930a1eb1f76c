package models

import (
	"testing"
	"time"
)

func TestOperationTypeWeights(t *testing.T) {
	tests := []struct {
		typ    OperationType
		weight int
		limit  time.Duration
	}{
		{OperationTextToImage, 1, 120 * time.Second},
		{OperationImageToImage, 2, 120 * time.Second},
		{OperationTextToImages, 4, 120 * time.Second},
		{OperationTrain, 0, 1200 * time.Second},
	}
	for _, tt := range tests {
		if got := tt.typ.Weight(); got != tt.weight {
			t.Errorf("%s weight = %d, want %d", tt.typ, got, tt.weight)
		}
		if got := tt.typ.MaxExecutionTime(); got != tt.limit {
			t.Errorf("%s max execution = %v, want %v", tt.typ, got, tt.limit)
		}
	}
	if OperationType("VIDEO").Valid() {
		t.Error("unknown type reported valid")
	}
}

func TestOperationStatusClassification(t *testing.T) {
	active := []OperationStatus{OperationStatusWaiting, OperationStatusInProgress}
	terminal := []OperationStatus{
		OperationStatusSuccess, OperationStatusError,
		OperationStatusCanceledByClient, OperationStatusCanceledByBalancer,
	}
	for _, s := range active {
		if !s.IsActive() || s.IsTerminal() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() || !s.IsTerminal() {
			t.Errorf("%s should be terminal and not active", s)
		}
	}
}

func TestCapabilitiesSatisfies(t *testing.T) {
	caps := Capabilities{
		Models:      []string{"sdxl", "sd15"},
		Loras:       []string{"pixel"},
		ControlNets: []string{"canny"},
	}
	tests := []struct {
		name string
		req  Requirement
		want bool
	}{
		{"model only", Requirement{Type: OperationTextToImage, Model: "sdxl"}, true},
		{"missing model", Requirement{Type: OperationTextToImage, Model: "flux"}, false},
		{"empty model", Requirement{Type: OperationTextToImage}, false},
		{"lora present", Requirement{Type: OperationImageToImage, Model: "sd15", Lora: "pixel"}, true},
		{"lora missing", Requirement{Type: OperationImageToImage, Model: "sd15", Lora: "anime"}, false},
		{"controlnet present", Requirement{Type: OperationTextToImage, Model: "sd15", ControlNet: "canny"}, true},
		{"controlnet missing", Requirement{Type: OperationTextToImage, Model: "sd15", ControlNet: "depth"}, false},
		{"train without api", Requirement{Type: OperationTrain, Model: "sd15"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := caps.Satisfies(tt.req); got != tt.want {
				t.Errorf("Satisfies(%+v) = %v, want %v", tt.req, got, tt.want)
			}
		})
	}

	caps.TrainAPI = "http://trainer:9000"
	if !caps.Satisfies(Requirement{Type: OperationTrain, Model: "sd15"}) {
		t.Error("train requirement should be satisfied once trainAPI is set")
	}
}

func TestServerEndpoints(t *testing.T) {
	s := Server{
		URL: "http://10.0.0.5:8188",
		Capabilities: Capabilities{
			ComfyAPI: "https://gpu-1.example.com/comfy/",
			TrainAPI: "http://gpu-1.example.com:9000/",
		},
	}

	e := s.Endpoints(OperationTextToImage)
	if e.HTTP != "https://gpu-1.example.com/comfy" {
		t.Errorf("HTTP = %q", e.HTTP)
	}
	if e.Stream != "wss://gpu-1.example.com/comfy" {
		t.Errorf("Stream = %q", e.Stream)
	}
	if e.Train != "" {
		t.Errorf("Train = %q, want empty for image operations", e.Train)
	}

	e = s.Endpoints(OperationTrain)
	if e.Train != "http://gpu-1.example.com:9000" {
		t.Errorf("Train = %q", e.Train)
	}

	s.Capabilities.ComfyAPI = ""
	e = s.Endpoints(OperationTextToImage)
	if e.HTTP != "http://10.0.0.5:8188" || e.Stream != "ws://10.0.0.5:8188" {
		t.Errorf("fallback endpoints = %+v", e)
	}
}
