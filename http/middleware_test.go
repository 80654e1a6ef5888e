package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"churnpredict/monitoring"
	"churnpredict/pipeline/pipelinetest"
	"churnpredict/service"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error","kind":"internal"}`, rec.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	h := RequestLogMiddleware(zaptest.NewLogger(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "3f1c2a9e-8d4b-4c6f-9a7e-1b2c3d4e5f60")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "3f1c2a9e-8d4b-4c6f-9a7e-1b2c3d4e5f60", seen)

	req.Header.Set("X-Request-ID", "<script>")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	h := CORSMiddleware([]string{"https://crm.example.com"})(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/predict", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://crm.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	logger := zaptest.NewLogger(t)
	metrics := monitoring.NewMetrics()
	hub := monitoring.NewPredictionHub(logger, metrics, []string{"*"})
	go hub.Run()
	t.Cleanup(hub.Stop)

	svc, err := service.New(pipelinetest.Pipeline(), service.Options{Broadcaster: hub, Logger: logger})
	require.NoError(t, err)
	api, err := NewAPI(svc, APIOptions{Hub: hub, Metrics: metrics, Logger: logger})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(DefaultServerConfig(), api, metrics, logger).Handler())
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/predictions", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type":   "predict",
		"id":     "req-1",
		"record": pipelinetest.Values(pipelinetest.ChurnRecord()),
	}))

	// the requester receives its own result and the broadcast, in either order
	seen := map[monitoring.MessageType]monitoring.Message{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for len(seen) < 2 {
		var msg monitoring.Message
		require.NoError(t, conn.ReadJSON(&msg))
		seen[msg.Type] = msg
	}
	assert.Equal(t, "req-1", seen[monitoring.MessageResult].RequestID)
	assert.Contains(t, string(seen[monitoring.MessageAssessment].Data), `"prediction":"Churn"`)
}
