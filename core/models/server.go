package models

import (
	"net/url"
	"strings"
)

// ServerStatus represents the health state of a backend server
type ServerStatus string

const (
	ServerStatusOnline  ServerStatus = "ONLINE"
	ServerStatusOffline ServerStatus = "OFFLINE"
)

// Capabilities is what a backend reports from its system_stats probe
type Capabilities struct {
	Models      []string `json:"models"`
	Loras       []string `json:"loras"`
	ControlNets []string `json:"controlnets"`
	ComfyAPI    string   `json:"comfyAPI"`
	TrainAPI    string   `json:"trainAPI"`
}

// Server represents a backend inference server
type Server struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Capabilities Capabilities `json:"capabilities"`
	Status       ServerStatus `json:"status"`
}

// Satisfies reports whether the capability set meets the requirement.
// The model is always matched, lora and controlnet only when requested.
func (c Capabilities) Satisfies(req Requirement) bool {
	if !contains(c.Models, req.Model) {
		return false
	}
	if req.Lora != "" && !contains(c.Loras, req.Lora) {
		return false
	}
	if req.ControlNet != "" && !contains(c.ControlNets, req.ControlNet) {
		return false
	}
	if req.Type.IsTraining() && c.TrainAPI == "" {
		return false
	}
	return true
}

// Endpoints derives the client-facing addresses for an operation of type t
func (s Server) Endpoints(t OperationType) Endpoints {
	base := s.Capabilities.ComfyAPI
	if base == "" {
		base = s.URL
	}
	base = strings.TrimRight(base, "/")

	e := Endpoints{HTTP: base, Stream: streamURL(base)}
	if t.IsTraining() {
		e.Train = strings.TrimRight(s.Capabilities.TrainAPI, "/")
	}
	return e
}

func streamURL(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String()
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
