package simserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/hometop/internal/logstore"
	"github.com/nixlim/hometop/internal/query"
	"github.com/nixlim/hometop/internal/simulator"
	"github.com/nixlim/hometop/internal/telemetry"
)

const postedLogs = `{"logs": [
	{"device_type": "Light", "device_id": "l1", "user_id": "u1", "action": "power", "value": "on",
	 "function": "turnOn", "timestamp": "2024-12-16T08:00:00Z", "state": {"power": "on", "brightness": 70}},
	{"device_type": "Speaker", "device_id": "s1", "user_id": "u1", "action": "power", "value": "off",
	 "function": "turnOff", "timestamp": "2024-12-16T09:30:00Z", "state": {"power": "off", "volume": 35}},
	{"device_type": "Light", "device_id": "", "user_id": "u1", "timestamp": "2024-12-16T10:00:00Z"}
]}`

func newTestServer(t *testing.T, opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(newTestRepo(t), append([]Option{WithLocation(time.UTC)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

func get(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, decode(t, resp.Body)
}

func decode(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestGetLogs_Empty(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := get(t, ts.URL+"/get_logs")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 200, body["code"])
	assert.Equal(t, []any{}, body["data"])
	assert.Equal(t, "No logs found", body["message"])
}

func TestSimulate_PostedLogs(t *testing.T) {
	srv, ts := newTestServer(t)

	status, body := post(t, ts.URL+"/simulate", postedLogs)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Successfully processed 2 logs", body["message"])
	assert.EqualValues(t, 1, body["ignored"])
	assert.Equal(t, 2.0, testutil.ToFloat64(srv.Metrics().LogsStored))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.Metrics().LogsIgnored))

	status, body = get(t, ts.URL+"/get_logs")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].([]any)
	require.Len(t, data, 2)

	newest := data[0].(map[string]any)
	assert.Equal(t, "s1", newest["device_id"])
	assert.Equal(t, "turnOff", newest["function"])
	assert.Equal(t, "2024-12-16T09:30:00Z", newest["timestamp"])
	assert.Equal(t, map[string]any{"power": "off", "volume": 35.0}, newest["state"])
}

func TestSimulate_BadRequests(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"empty", "", http.StatusBadRequest, "No data provided"},
		{"not json", "{nope", http.StatusBadRequest, "body must be a JSON object"},
		{"array", "[]", http.StatusBadRequest, "body must be a JSON object"},
		{"logs not array", `{"logs": 5}`, http.StatusUnprocessableEntity, "logs field must be an array"},
		{"no generator", `{"duration_hours": 2}`, http.StatusUnprocessableEntity, "logs field is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, ts.URL+"/simulate", tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", body["status"])
			assert.EqualValues(t, tt.status, body["code"])
			assert.Equal(t, tt.msg, body["message"])
		})
	}
}

func TestSimulate_Generate(t *testing.T) {
	var gotStart time.Time
	var gotHours int
	gen := func(start time.Time, hours int) ([]simulator.Event, error) {
		gotStart, gotHours = start, hours
		return []simulator.Event{
			{DeviceType: "Light", DeviceID: "l9", UserID: "u9", Action: "brightness", Value: 55,
				Func: "setBrightness", Timestamp: start, State: map[string]any{"power": "on", "brightness": 55}},
		}, nil
	}
	srv, ts := newTestServer(t, WithGenerator(gen))

	status, body := post(t, ts.URL+"/simulate", `{"duration_hours": 6, "start_time": "2024-12-16 00:00:00"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Simulated 1 logs", body["message"])
	assert.Equal(t, 6, gotHours)
	assert.True(t, gotStart.Equal(time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.Metrics().LogsStored))

	rows, err := srv.repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "55", rows[0].Value)
	assert.JSONEq(t, `{"brightness":55,"power":"on"}`, rows[0].State)
}

func TestSimulate_GenerateValidation(t *testing.T) {
	gen := func(time.Time, int) ([]simulator.Event, error) { return nil, nil }
	_, ts := newTestServer(t, WithGenerator(gen))

	for _, body := range []string{
		`{"duration_hours": 0}`,
		`{"duration_hours": "six"}`,
		`{"duration_hours": 100000}`,
		`{"start_time": "yesterday"}`,
	} {
		status, _ := post(t, ts.URL+"/simulate", body)
		assert.Equal(t, http.StatusUnprocessableEntity, status, body)
	}
}

func TestQuery_Endpoint(t *testing.T) {
	srv, ts := newTestServer(t)
	post(t, ts.URL+"/simulate", postedLogs)

	status, body := post(t, ts.URL+"/api/query", `{"query": "SELECT device_id, func FROM logs ORDER BY timestamp", "execute": true}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SELECT device_id, func FROM logs ORDER BY timestamp", body["sql"])

	results := body["results"].(map[string]any)
	assert.Equal(t, []any{"device_id", "func"}, results["columns"])
	assert.EqualValues(t, 2, results["total_rows"])
	rows := results["data"].([]any)
	assert.Equal(t, "l1", rows[0].(map[string]any)["device_id"])

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.Metrics().Queries.WithLabelValues("ok")))
}

func TestQuery_Errors(t *testing.T) {
	srv, ts := newTestServer(t)

	status, body := post(t, ts.URL+"/api/query", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "query is required", body["error"])

	status, body = post(t, ts.URL+"/api/query", `{"query": "DELETE FROM logs"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrReadOnly.Error(), body["error"])

	status, body = post(t, ts.URL+"/api/query", `{"query": "SELECT * FROM nowhere"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "nowhere")

	assert.Equal(t, 2.0, testutil.ToFloat64(srv.Metrics().Queries.WithLabelValues("error")))
}

func TestQuery_NoExecute(t *testing.T) {
	_, ts := newTestServer(t)

	status, body := post(t, ts.URL+"/api/query", `{"query": "SELECT 1", "execute": false}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "SELECT 1", body["sql"])
	assert.NotContains(t, body, "results")
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts.URL+"/simulate", postedLogs)

	status, body := get(t, ts.URL+"/api/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 2, body["logs"])

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `hometop_sim_requests_total{method="POST",route="/simulate",status="200"} 1`)
	assert.Contains(t, text, `hometop_sim_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, text, "hometop_sim_logs_stored_total 2")
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/query", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

// The dashboard's own clients must read what the backend serves.
func TestDashboardClients(t *testing.T) {
	_, ts := newTestServer(t)
	post(t, ts.URL+"/simulate", postedLogs)
	ctx := context.Background()

	store := logstore.New(ts.URL, logstore.WithLocation(time.UTC))
	require.NoError(t, store.Fetch(ctx))
	records := store.Snapshot().Records
	require.Len(t, records, 2)
	assert.Equal(t, telemetry.DeviceSpeaker, records[0].DeviceType)
	assert.Equal(t, "turnOff", records[0].Func)
	light, ok := records[1].State.(telemetry.LightState)
	require.True(t, ok)
	require.NotNil(t, light.Brightness)
	assert.Equal(t, 70, *light.Brightness)

	svc := query.New(ts.URL, query.WithLocation(time.UTC))
	res, err := svc.Execute(ctx, "SELECT * FROM logs WHERE device_type = 'Light'")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalRows)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "l1", res.Records[0].DeviceID)
	assert.True(t, res.Records[0].PoweredOn())
}
