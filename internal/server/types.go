// Package server exposes the scan pipeline over HTTP for kiosk and
// integration use.
package server

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/template"
)

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	OverlayEnabled bool
	PipelineConfig pipeline.Config
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       *pipeline.Pipeline
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// TemplateInfo describes one available form template.
type TemplateInfo struct {
	Name      string `json:"name"`
	Options   int    `json:"options"`
	Questions int    `json:"capacity"`
	IDChars   int    `json:"id_chars"`
}

// TemplatesResponse is the /templates payload.
type TemplatesResponse struct {
	Templates []TemplateInfo `json:"templates"`
	Count     int            `json:"count"`
}

// ScanResponse wraps a scan result or error.
type ScanResponse struct {
	Success bool             `json:"success"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// PageScanResult is one PDF page's scan outcome.
type PageScanResult struct {
	Page   int              `json:"page"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// PDFScanResponse wraps a multi-page PDF scan.
type PDFScanResponse struct {
	Success bool             `json:"success"`
	Pages   []PageScanResult `json:"pages,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// NewServer creates a new scan server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().
		WithConfig(config.PipelineConfig).
		Build()
	if err != nil {
		return nil, err
	}

	return &Server{
		pipeline:       pl,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeoutSec:     config.TimeoutSec,
		overlayEnabled: config.OverlayEnabled,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/templates", s.corsMiddleware(s.templatesHandler))
	mux.HandleFunc("/scan", s.corsMiddleware(s.scanHandler))
	mux.HandleFunc("/scan/pdf", s.corsMiddleware(s.scanPdfHandler))
	mux.HandleFunc("/ws", s.scanWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// templateInfos lists the built-in templates for /templates.
func templateInfos() []TemplateInfo {
	builtin := template.Builtin()
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]TemplateInfo, 0, len(names))
	for _, name := range names {
		t := builtin[name]
		infos = append(infos, TemplateInfo{
			Name:      t.Name,
			Options:   t.Options(),
			Questions: t.Capacity(),
			IDChars:   t.ID.Chars,
		})
	}
	return infos
}
