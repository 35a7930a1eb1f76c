package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeParsesSystemStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SystemStatsPath {
			t.Errorf("path = %q, want %q", r.URL.Path, SystemStatsPath)
		}
		w.Write([]byte(`{"models":["sdxl"],"loras":["pixel"],"comfyAPI":"http://gpu:8188","trainAPI":"http://gpu:9000"}`))
	}))
	defer srv.Close()

	caps, err := NewClient(time.Second).Probe(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(caps.Models) != 1 || caps.Models[0] != "sdxl" {
		t.Errorf("Models = %v", caps.Models)
	}
	if caps.ControlNets == nil || len(caps.ControlNets) != 0 {
		t.Errorf("ControlNets = %v, want empty non-nil", caps.ControlNets)
	}
	if caps.ComfyAPI != "http://gpu:8188" || caps.TrainAPI != "http://gpu:9000" {
		t.Errorf("endpoints = %q %q", caps.ComfyAPI, caps.TrainAPI)
	}
}

func TestProbeRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewClient(time.Second).Probe(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503")
	}
}

func TestProbeIsTimeBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(50 * time.Millisecond).Probe(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe took %v, want bounded by client timeout", elapsed)
	}
}

func TestProbeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	if _, err := NewClient(time.Second).Probe(context.Background(), srv.URL); err == nil {
		t.Fatal("expected decode error")
	}
}
