package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradesight/tradesight/internal/analysis"
	"github.com/tradesight/tradesight/internal/inference"
	"github.com/tradesight/tradesight/internal/ingest"
	"github.com/tradesight/tradesight/internal/models"
	"github.com/tradesight/tradesight/internal/store"
)

const goodResponse = `{"signal":"BUY","confidence":85,"entry":"1.2345","stopLoss":"1.2000","targets":["1.2500","1.2700","1.3000"],"reasoning":["a","b","c"]}`

type stubAdapter struct {
	text string
	err  error
}

func (s *stubAdapter) Infer(ctx context.Context, apiKey string, image []byte, mimeType, mode string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

type testServer struct {
	server *httptest.Server
	users  store.UserStore
}

func newTestServer(t *testing.T, adapter inference.Adapter) *testServer {
	t.Helper()

	users, err := store.NewFileUserStore(t.TempDir())
	require.NoError(t, err)
	journal, err := store.NewFileJournal(t.TempDir())
	require.NoError(t, err)
	uploadsDir := t.TempDir()
	ingestor, err := ingest.New(uploadsDir, "http://localhost:8080/uploads")
	require.NoError(t, err)

	orch := analysis.New(users, journal, ingestor, adapter, nil, nil, zap.NewNop())
	handler := NewHandler(users, journal, orch, 10*time.Second, zap.NewNop())
	router := SetupRoutes(handler, uploadsDir)

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return &testServer{server: ts, users: users}
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (ts *testServer) loginUser(t *testing.T, email, apiKey string) string {
	t.Helper()
	ctx := context.Background()
	user, err := ts.users.UpsertByEmail(ctx, email, "Tester", "")
	require.NoError(t, err)
	if apiKey != "" {
		require.NoError(t, ts.users.UpdateSettings(ctx, user.ID, &apiKey, nil))
	}
	return user.ID
}

func (ts *testServer) postAnalyze(t *testing.T, userID, mode string, image []byte, mimeType, filename string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("userId", userID))
	require.NoError(t, mw.WriteField("mode", mode))

	if image != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
		hdr.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.server.URL+"/api/analyze", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{text: goodResponse})

	t.Run("creates user on first login", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/auth/login", map[string]string{
			"email": "new@example.com", "name": "New", "picture": "p.png",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Success bool        `json:"success"`
			User    models.User `json:"user"`
		}
		decodeBody(t, resp, &body)
		assert.True(t, body.Success)
		assert.NotEmpty(t, body.User.ID)
		assert.Equal(t, "new@example.com", body.User.Email)
	})

	t.Run("repeat login returns the same user", func(t *testing.T) {
		first := ts.postJSON(t, "/api/auth/login", map[string]string{"email": "same@example.com"})
		second := ts.postJSON(t, "/api/auth/login", map[string]string{"email": "same@example.com"})

		var a, b struct {
			User models.User `json:"user"`
		}
		decodeBody(t, first, &a)
		decodeBody(t, second, &b)
		assert.Equal(t, a.User.ID, b.User.ID)
	})

	t.Run("rejects missing email", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/auth/login", map[string]string{"name": "NoEmail"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{text: goodResponse})
	userID := ts.loginUser(t, "settings@example.com", "")

	t.Run("update then get reflects saved values", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/settings", map[string]any{
			"userId":       userID,
			"geminiKey":    "my-key",
			"riskSettings": map[string]float64{"balance": 5000, "riskPercent": 2},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		get := ts.get(t, "/api/settings/"+userID)
		require.Equal(t, http.StatusOK, get.StatusCode)

		var settings models.Settings
		decodeBody(t, get, &settings)
		assert.Equal(t, "my-key", settings.GeminiKey)
		assert.Equal(t, 5000.0, settings.RiskSettings.Balance)
	})

	t.Run("get for fresh user returns defaulted risk settings", func(t *testing.T) {
		freshID := ts.loginUser(t, "fresh-settings@example.com", "")
		get := ts.get(t, "/api/settings/"+freshID)
		require.Equal(t, http.StatusOK, get.StatusCode)

		var settings models.Settings
		decodeBody(t, get, &settings)
		assert.Equal(t, float64(models.DefaultBalance), settings.RiskSettings.Balance)
	})

	t.Run("unknown user returns 404", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/settings", map[string]any{"userId": "ghost", "geminiKey": "k"})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		get := ts.get(t, "/api/settings/ghost")
		defer get.Body.Close()
		assert.Equal(t, http.StatusNotFound, get.StatusCode)
	})
}

func TestAnalyzeEndpoint(t *testing.T) {
	image := []byte("fake-png-bytes")

	t.Run("full pipeline returns record with risk summary", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{text: goodResponse})
		userID := ts.loginUser(t, "analyze@example.com", "valid-key")

		resp := ts.postAnalyze(t, userID, models.ModeSwing, image, "image/png", "chart.png")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			models.AnalysisRecord
			Risk *struct {
				RRRatio      string `json:"rrRatio"`
				PositionSize string `json:"positionSize"`
			} `json:"risk"`
		}
		decodeBody(t, resp, &result)
		assert.Equal(t, userID, result.UserID)
		assert.Equal(t, models.SignalBuy, result.Result.Signal)
		require.NotNil(t, result.Risk)
		assert.Equal(t, "1:0.45", result.Risk.RRRatio)

		// the record lands in history, newest first
		hist := ts.get(t, "/api/history/"+userID)
		require.Equal(t, http.StatusOK, hist.StatusCode)
		var records []models.AnalysisRecord
		decodeBody(t, hist, &records)
		require.Len(t, records, 1)
		assert.Equal(t, result.ID, records[0].ID)
	})

	t.Run("missing image returns 400", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{text: goodResponse})
		userID := ts.loginUser(t, "noimg@example.com", "valid-key")

		resp := ts.postAnalyze(t, userID, models.ModeSwing, nil, "", "")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown mode returns 400", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{text: goodResponse})
		userID := ts.loginUser(t, "badmode@example.com", "valid-key")

		resp := ts.postAnalyze(t, userID, "daytrade", image, "image/png", "chart.png")
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing credential returns 401 and journals nothing", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{text: goodResponse})
		userID := ts.loginUser(t, "nokey@example.com", "")

		resp := ts.postAnalyze(t, userID, models.ModeSwing, image, "image/png", "chart.png")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Contains(t, body["error"], "API Key missing")

		hist := ts.get(t, "/api/history/"+userID)
		var records []models.AnalysisRecord
		decodeBody(t, hist, &records)
		assert.Empty(t, records)
	})

	t.Run("provider failure returns 500 with try-again message", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{err: fmt.Errorf("%w: quota exceeded", inference.ErrProvider)})
		userID := ts.loginUser(t, "quota@example.com", "valid-key")

		resp := ts.postAnalyze(t, userID, models.ModeSwing, image, "image/png", "chart.png")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Contains(t, body["error"], "Try again later")
	})

	t.Run("unparseable model response returns 500 with retry message", func(t *testing.T) {
		ts := newTestServer(t, &stubAdapter{text: "no structure here"})
		userID := ts.loginUser(t, "prose@example.com", "valid-key")

		resp := ts.postAnalyze(t, userID, models.ModeSwing, image, "image/png", "chart.png")
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		decodeBody(t, resp, &body)
		assert.Contains(t, body["error"], "unexpected model response")
	})
}

func TestHistoryEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{text: goodResponse})

	t.Run("empty history returns empty array not null", func(t *testing.T) {
		userID := ts.loginUser(t, "empty-history@example.com", "")
		resp := ts.get(t, "/api/history/" + userID)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		raw := new(bytes.Buffer)
		_, err := raw.ReadFrom(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, "[]", strings.TrimSpace(raw.String()))
	})
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{text: goodResponse})
	resp := ts.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}
