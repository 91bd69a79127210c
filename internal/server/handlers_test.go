package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/testutil"
)

func newTestServer(t *testing.T, questions int) (*Server, *http.ServeMux) {
	t.Helper()

	pCfg := pipeline.DefaultConfig()
	pCfg.Questions = questions

	srv, err := NewServer(Config{
		Host:           "localhost",
		Port:           8080,
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		OverlayEnabled: true,
		PipelineConfig: pCfg,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	return srv, mux
}

// sheetUpload builds a multipart body with a synthetic sheet PNG in the
// given field, plus extra form values.
func sheetUpload(t *testing.T, field string, cfg testutil.SheetConfig, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(field, "sheet.png")
	require.NoError(t, err)
	require.NoError(t, png.Encode(part, testutil.GenerateSheet(cfg)))

	for k, v := range extra {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	return &body, writer.FormDataContentType()
}

func TestHealthHandler(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Time)
}

func TestHealthHandlerMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodOptions, "/scan", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestTemplatesHandler(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/templates", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp TemplatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "answersheet-63", resp.Templates[0].Name)
	assert.Equal(t, 5, resp.Templates[0].Options)
	assert.Equal(t, 80, resp.Templates[0].Questions)
	assert.Equal(t, 8, resp.Templates[0].IDChars)
}

func TestScanHandlerJSON(t *testing.T) {
	_, mux := newTestServer(t, 1)

	sheet := testutil.DefaultSheetConfig()
	sheet.Fills = []testutil.CellFill{{Question: 0, Option: 1, Score: 0.9}}
	sheet.ID = "AB12"
	body, contentType := sheetUpload(t, "image", sheet, nil)

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "AB12", resp.Result.TrimmedID())
	assert.Equal(t, "B", resp.Result.AnswerLine())
}

func TestScanHandlerTextFormat(t *testing.T) {
	_, mux := newTestServer(t, 2)

	sheet := testutil.DefaultSheetConfig()
	sheet.Fills = []testutil.CellFill{{Question: 1, Option: 4, Score: 0.9}}
	sheet.ID = "XY42"
	body, contentType := sheetUpload(t, "image", sheet, map[string]string{"format": "text"})

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "XY42 0 _,E\n", rec.Body.String())
}

func TestScanHandlerOverlay(t *testing.T) {
	_, mux := newTestServer(t, 1)

	body, contentType := sheetUpload(t, "image", testutil.DefaultSheetConfig(),
		map[string]string{"format": "overlay"})

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestScanHandlerOverlayDisabled(t *testing.T) {
	pCfg := pipeline.DefaultConfig()
	pCfg.Questions = 1
	srv, err := NewServer(Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		OverlayEnabled: false,
		PipelineConfig: pCfg,
	})
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	body, contentType := sheetUpload(t, "image", testutil.DefaultSheetConfig(),
		map[string]string{"format": "overlay"})

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanHandlerQuestionsOverride(t *testing.T) {
	_, mux := newTestServer(t, 1)

	sheet := testutil.DefaultSheetConfig()
	sheet.Fills = []testutil.CellFill{
		{Question: 0, Option: 0, Score: 0.9},
		{Question: 2, Option: 2, Score: 0.9},
	}
	body, contentType := sheetUpload(t, "image", sheet, map[string]string{"questions": "3"})

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "A,_,C", resp.Result.AnswerLine())
}

func TestScanHandlerInvalidQuestions(t *testing.T) {
	_, mux := newTestServer(t, 1)

	body, contentType := sheetUpload(t, "image", testutil.DefaultSheetConfig(),
		map[string]string{"questions": "zero"})

	req := httptest.NewRequest(http.MethodPost, "/scan", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerNoFile(t *testing.T) {
	_, mux := newTestServer(t, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("format", "text"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "No image file")
}

func TestScanHandlerCorruptImage(t *testing.T) {
	_, mux := newTestServer(t, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "sheet.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("definitely not a png"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanHandlerUnreadableSheet(t *testing.T) {
	_, mux := newTestServer(t, 1)

	// A valid PNG with no fiducials fails registration.
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "blank.png")
	require.NoError(t, err)

	blank := testutil.SheetConfig{Width: 850, Height: 1100, Template: testutil.DefaultSheetConfig().Template}
	img := testutil.GenerateSheet(blank)
	// Paint over the fiducial corners.
	for _, y := range []int{0, 1050} {
		for yy := y; yy < y+50 && yy < 1100; yy++ {
			for x := range 850 {
				img.Set(x, yy, img.RGBAAt(425, 550))
			}
		}
	}
	require.NoError(t, png.Encode(part, img))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "Scan failed")
}

func TestScanHandlerMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestScanPdfHandlerNoFile(t *testing.T) {
	_, mux := newTestServer(t, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan/pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "No PDF file")
}

func TestScanPdfHandlerInvalidPDF(t *testing.T) {
	_, mux := newTestServer(t, 1)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("pdf", "stack.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a pdf"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan/pdf", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "omr_") ||
		strings.Contains(rec.Body.String(), "go_"), "expected prometheus exposition output")
}

func TestPerRequestQuestionsKeepComponentSettings(t *testing.T) {
	pCfg := pipeline.DefaultConfig()
	pCfg.Questions = 1
	pCfg.Normalize.SigmoidSteepness = 14
	pCfg.Annotate.ThumbnailSize = 321
	pCfg.Parallel.MaxWorkers = 2

	srv, err := NewServer(Config{
		Host:           "localhost",
		Port:           8080,
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		PipelineConfig: pCfg,
	})
	require.NoError(t, err)

	pl, err := srv.pipelineWithQuestions(5)
	require.NoError(t, err)

	cfg := pl.Config()
	assert.Equal(t, 5, cfg.Questions)
	assert.InDelta(t, 14.0, cfg.Normalize.SigmoidSteepness, 1e-12)
	assert.Equal(t, 321, cfg.Annotate.ThumbnailSize)
	assert.Equal(t, 2, cfg.Parallel.MaxWorkers)
}
