package websocket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"receiptd/app/config"
	"receiptd/app/database"
	"receiptd/app/escpos"
	"receiptd/app/models"
	"receiptd/app/services"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	store, err := database.Open(config.StoreConfig{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Printer.Type = "file"
	cfg.Printer.Device = t.TempDir() + "/receipt.bin"
	cfg.Printer.Encoding = escpos.EncodingRaw
	cfg.Cut.WaitAfterFeedMS = 0
	cfg.Cut.WaitAfterCutMS = 0
	printer := services.NewPrintService(store, cfg, nil)

	srv := NewServer(store, printer, cfg.Server, nil)
	go srv.run()
	t.Cleanup(srv.Stop)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	srv.registerRESTRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func orderPayload(number string) map[string]interface{} {
	return map[string]interface{}{
		"order_number": number,
		"bron":         "web",
		"items": []interface{}{
			map[string]interface{}{"name": "Tjap Tjoy", "qty": 1, "price": "12.00"},
		},
	}
}

func TestPostOrderAndFetch(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", orderPayload("3001"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec models.OrderRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	resp.Body.Close()
	assert.Equal(t, "3001", rec.OrderNumber)

	getResp, err := http.Get(ts.URL + "/api/orders/3001")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestPostInvalidOrder(t *testing.T) {
	_, ts := newTestServer(t)

	payload := orderPayload("3002")
	delete(payload, "order_number")
	resp := postJSON(t, ts.URL+"/api/orders", payload)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetUnknownOrder(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/orders/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBatchCollectsFailures(t *testing.T) {
	_, ts := newTestServer(t)

	bad := orderPayload("")
	delete(bad, "order_number")
	resp := postJSON(t, ts.URL+"/api/orders/batch", []interface{}{
		orderPayload("3003"), bad,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Saved  int                    `json:"saved"`
		Failed []database.BatchResult `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Saved)
	assert.Len(t, result.Failed, 1)
}

func TestPrintEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/orders", orderPayload("3004"))
	resp.Body.Close()

	printResp := postJSON(t, ts.URL+"/api/print", map[string]interface{}{"order_number": "3004"})
	defer printResp.Body.Close()
	require.Equal(t, http.StatusOK, printResp.StatusCode)

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(printResp.Body).Decode(&result))
	assert.Equal(t, "printed", result["status"])
}

func TestPrintUnknownOrder(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/print", map[string]interface{}{"order_number": "none"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatchEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/orders", orderPayload("3005"))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodPatch, ts.URL+"/api/orders/3005",
		bytes.NewReader([]byte(`{"is_completed": true}`)))
	require.NoError(t, err)
	patchResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer patchResp.Body.Close()
	assert.Equal(t, http.StatusOK, patchResp.StatusCode)

	// Protected columns are rejected.
	req, err = http.NewRequest(http.MethodPatch, ts.URL+"/api/orders/3005",
		bytes.NewReader([]byte(`{"order_number": "hijack"}`)))
	require.NoError(t, err)
	badResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
