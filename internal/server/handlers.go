package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/MeKo-Tech/omr/internal/annotate"
	"github.com/MeKo-Tech/omr/internal/pdf"
	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding health response: %v\n", err)
	}
}

// templatesHandler lists the built-in form templates.
func (s *Server) templatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := templateInfos()
	response := TemplatesResponse{Templates: infos, Count: len(infos)}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding templates response: %v\n", err)
	}
}

// scanHandler reads one uploaded sheet image.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read image data", http.StatusInternalServerError)
		return
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return
	}

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Scan pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	pl := s.pipeline
	if qs := r.FormValue("questions"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n <= 0 {
			s.writeErrorResponse(w, "Invalid questions parameter", http.StatusBadRequest)
			return
		}
		pl, err = s.pipelineWithQuestions(n)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Invalid question count: %v", err), http.StatusBadRequest)
			return
		}
	}

	start := time.Now()
	res, err := pl.ProcessContext(r.Context(), img)
	if err != nil {
		scanRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), http.StatusUnprocessableEntity)
		return
	}
	scanRequestsTotal.WithLabelValues("image", "success").Inc()
	scanProcessingDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	recordScanResult(res)

	// Determine output format: default json; allow 'format' in query or form
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%s %d %s\n", res.TrimmedID(), res.FormNumber, res.AnswerLine())
		return
	}

	if format == "overlay" || r.FormValue("overlay") == "1" {
		s.handleOverlayOutput(w, res.Annotated)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ScanResponse{Success: true, Result: res}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding scan response: %v\n", err)
	}
}

// handleOverlayOutput streams the annotated sheet as PNG.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, annotated *image.RGBA) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}
	if annotated == nil {
		http.Error(w, "overlay failed", http.StatusInternalServerError)
		return
	}

	thumb := annotate.Thumbnail(annotated, s.pipeline.Config().Annotate)
	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, thumb)
}

// scanPdfHandler reads every page of an uploaded PDF of scanned sheets.
func (s *Server) scanPdfHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)

	if err := r.ParseMultipartForm(s.maxUploadMB * 1024 * 1024); err != nil {
		s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		s.writeErrorResponse(w, "No PDF file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Size > s.maxUploadMB*1024*1024 {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	if s.pipeline == nil {
		s.writeErrorResponse(w, "Scan pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	// pdfcpu operates on files, so spool the upload to disk first.
	tmp, err := os.CreateTemp("", "omr-upload-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	_ = tmp.Close()

	start := time.Now()
	scans, err := pdf.ExtractScans(tmpPath, r.FormValue("pages"))
	if err != nil {
		scanRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("PDF extraction failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	pages := make([]PageScanResult, 0, len(scans))
	for _, scan := range scans {
		page := PageScanResult{Page: scan.Page}
		res, err := s.pipeline.ProcessContext(r.Context(), scan.Image)
		if err != nil {
			page.Error = err.Error()
		} else {
			page.Result = res
			recordScanResult(res)
		}
		pages = append(pages, page)
	}
	scanRequestsTotal.WithLabelValues("pdf", "success").Inc()
	scanProcessingDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(PDFScanResponse{Success: true, Pages: pages}); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding PDF scan response: %v\n", err)
	}
}

// pipelineWithQuestions rebuilds the pipeline with a per-request question
// count; all other settings carry over from the configured pipeline.
func (s *Server) pipelineWithQuestions(n int) (*pipeline.Pipeline, error) {
	cfg := s.pipeline.Config()
	cfg.Questions = n
	return pipeline.NewBuilder().WithConfig(cfg).Build()
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ScanResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing error response: %v\n", err)
	}
}
