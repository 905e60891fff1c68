package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/japaniel/cncbits/pkg/db"
	"github.com/japaniel/cncbits/pkg/gcode"
	"github.com/japaniel/cncbits/pkg/generate"
	"github.com/japaniel/cncbits/pkg/paths"
	"github.com/japaniel/cncbits/pkg/sink"
	"github.com/japaniel/cncbits/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const straightBit = "550e8400-e29b-41d4-a716-446655440000"

type testEnv struct {
	server *Server
	store  *store.CSVStore
	outDir string
}

func setupTestEnvironment(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewCSVStore(t.TempDir())
	_, err := st.Seed(context.Background())
	require.NoError(t, err)

	out := t.TempDir()
	reg := prometheus.NewRegistry()
	metrics, err := generate.NewMetrics(reg)
	require.NoError(t, err)

	gen := generate.NewGenerator(st, sink.NewFileSink(paths.Static{Data: t.TempDir(), Output: out}), gcode.DefaultProfile())
	gen.Metrics = metrics
	return &testEnv{server: New(st, gen, reg, nil), store: st, outDir: out}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestListBits(t *testing.T) {
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodGet, "/api/v1/bits", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var bits []db.RouterBit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bits))
	assert.Len(t, bits, len(db.DefaultBits()))
}

func TestCreateBit(t *testing.T) {
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodPost, "/api/v1/bits", `{"name":"Flush Trim 1/2\"","type":"Flush Trim","diameter":0.5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created db.RouterBit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEqual(t, uuid.Nil, created.ID)

	c, err := env.store.GetCoordinate(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Zero(t, c.X)
	assert.Zero(t, c.Z)

	dup := env.do(t, http.MethodPost, "/api/v1/bits", `{"id":"`+straightBit+`","name":"again","type":"Straight","diameter":0.25}`)
	assert.Equal(t, http.StatusConflict, dup.Code)

	bad := env.do(t, http.MethodPost, "/api/v1/bits", `{"name":"no diameter","type":"Straight"}`)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "Invalid router bit", decodeError(t, bad).Message)
}

func TestUpdateCoordinate(t *testing.T) {
	env := setupTestEnvironment(t)

	rec := env.do(t, http.MethodPut, "/api/v1/coordinates/"+straightBit, `{"x":1.5,"y":2.5,"z":-3.25}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got db.BitCoordinate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, -3.25, got.Z)

	list := env.do(t, http.MethodGet, "/api/v1/coordinates", "")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `"z":-3.25`)

	missing := env.do(t, http.MethodPut, "/api/v1/coordinates/"+uuid.NewString(), `{"x":1,"y":2,"z":3}`)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	partial := env.do(t, http.MethodPut, "/api/v1/coordinates/"+straightBit, `{"x":1,"y":2}`)
	assert.Equal(t, http.StatusBadRequest, partial.Code)
	assert.Contains(t, decodeError(t, partial).Error, "z is required")

	badID := env.do(t, http.MethodPut, "/api/v1/coordinates/nope", `{"x":1,"y":2,"z":3}`)
	assert.Equal(t, http.StatusBadRequest, badID.Code)
}

func TestGenerate(t *testing.T) {
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodPost, "/api/v1/gcode/move_to_workpiece_zero",
		`{"bit_id":"`+straightBit+`","plywood_thickness":0.75,"calculate_workpiece_zero":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "workpiece-zero", resp.Operation)
	assert.Equal(t, "SET_ZERO_LOCATION.TAP", resp.Filename)
	assert.InDelta(t, 4.805, resp.Z, 1e-12)

	data, err := os.ReadFile(filepath.Join(env.outDir, "SET_ZERO_LOCATION.TAP"))
	require.NoError(t, err)
	assert.Equal(t, resp.Program, string(data))

	metrics := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), `cncbits_programs_generated_total{operation="workpiece-zero"} 1`)
}

func TestGenerateRouterBitPayload(t *testing.T) {
	env := setupTestEnvironment(t)
	rec := env.do(t, http.MethodPost, "/api/v1/gcode/spoilboard-zero",
		`{"router_bit":{"id":"`+straightBit+`","name":"Straight Bit"},"plywood_thickness":0.75}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "MOVE_TO_SPOILBOARD_ZERO.TAP")
}

func TestGenerateErrors(t *testing.T) {
	env := setupTestEnvironment(t)
	cases := []struct {
		name, path, body string
		code             int
	}{
		{"unknown operation", "/api/v1/gcode/engrave", `{"bit_id":"` + straightBit + `"}`, http.StatusBadRequest},
		{"bad json", "/api/v1/gcode/set-z", `{"bit_id":`, http.StatusBadRequest},
		{"negative thickness", "/api/v1/gcode/set-z", `{"bit_id":"` + straightBit + `","plywood_thickness":-1}`, http.StatusBadRequest},
		{"unknown bit", "/api/v1/gcode/set-z", `{"bit_id":"` + uuid.NewString() + `"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decodeError(t, rec).Code)
		})
	}

	entries, err := os.ReadDir(env.outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMetricsIgnoreCallerChosenOperations(t *testing.T) {
	env := setupTestEnvironment(t)
	for i := 0; i < 50; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/gcode/junk"+strconv.Itoa(i), `{"bit_id":"`+straightBit+`"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	metrics := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	body := metrics.Body.String()
	assert.NotContains(t, body, "junk")
	assert.Contains(t, body, `cncbits_generate_errors_total{operation="unknown",phase="parse"} 50`)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(generate.KindRequestMalformed))
	assert.Equal(t, http.StatusNotFound, statusForKind(generate.KindBitNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(generate.KindStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(generate.KindWriteFailed))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	env := setupTestEnvironment(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 2 * time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + ln.Addr().String() + "/api/v1/bits")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)
	client.CloseIdleConnections()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
