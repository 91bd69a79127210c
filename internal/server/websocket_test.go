package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/omr/internal/testutil"
)

func dialTestWebSocket(t *testing.T) *websocket.Conn {
	t.Helper()

	_, mux := newTestServer(t, 1)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	return conn
}

func readScanResponse(t *testing.T, conn *websocket.Conn) WebSocketScanResponse {
	t.Helper()
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp WebSocketScanResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestWebSocketScan(t *testing.T) {
	conn := dialTestWebSocket(t)

	sheet := testutil.DefaultSheetConfig()
	sheet.Fills = []testutil.CellFill{{Question: 0, Option: 3, Score: 0.9}}
	sheet.ID = "WS01"

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.GenerateSheet(sheet)))

	req := WebSocketScanRequest{Type: "image", Image: buf.Bytes()}
	require.NoError(t, conn.WriteJSON(req))

	// Two progress messages, then the completed result.
	first := readScanResponse(t, conn)
	assert.Equal(t, "processing", first.Status)
	assert.NotEmpty(t, first.RequestID)

	second := readScanResponse(t, conn)
	assert.Equal(t, "processing", second.Status)
	assert.InDelta(t, 0.5, second.Progress, 1e-9)

	final := readScanResponse(t, conn)
	require.Equal(t, "completed", final.Status)
	assert.InDelta(t, 1.0, final.Progress, 1e-9)
	assert.Equal(t, first.RequestID, final.RequestID)

	result, ok := final.Result.(map[string]interface{})
	require.True(t, ok, "result payload should be a JSON object")
	assert.Equal(t, "WS01    ", result["student_id"])
}

func TestWebSocketInvalidJSON(t *testing.T) {
	conn := dialTestWebSocket(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))

	resp := readScanResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "invalid_request", resp.ErrorType)
}

func TestWebSocketUnsupportedType(t *testing.T) {
	conn := dialTestWebSocket(t)

	require.NoError(t, conn.WriteJSON(WebSocketScanRequest{Type: "video"}))

	// Progress acknowledgement first, then the error.
	ack := readScanResponse(t, conn)
	assert.Equal(t, "processing", ack.Status)

	resp := readScanResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "Unsupported request type")
}

func TestWebSocketEmptyImage(t *testing.T) {
	conn := dialTestWebSocket(t)

	require.NoError(t, conn.WriteJSON(WebSocketScanRequest{Type: "image"}))

	ack := readScanResponse(t, conn)
	assert.Equal(t, "processing", ack.Status)

	resp := readScanResponse(t, conn)
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Error, "No image data")
}

func TestWebSocketRejectsPlainHTTP(t *testing.T) {
	_, mux := newTestServer(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
