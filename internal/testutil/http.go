package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// TestJWTSecret signs tokens minted by BearerToken
const TestJWTSecret = "test-secret"

// HTTPTestHelper provides utilities for HTTP testing
type HTTPTestHelper struct {
	t       *testing.T
	router  http.Handler
	headers map[string]string
}

// NewHTTPTestHelper creates a new HTTP test helper
func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	gin.SetMode(gin.TestMode)
	return &HTTPTestHelper{
		t:       t,
		router:  gin.New(),
		headers: make(map[string]string),
	}
}

// SetRouter sets the handler to use for testing
func (h *HTTPTestHelper) SetRouter(router http.Handler) {
	h.router = router
}

// WithBearer sends an Authorization header on subsequent requests
func (h *HTTPTestHelper) WithBearer(token string) *HTTPTestHelper {
	h.headers["Authorization"] = "Bearer " + token
	return h
}

// PostJSON performs a POST request with JSON payload
func (h *HTTPTestHelper) PostJSON(url string, payload interface{}) *httptest.ResponseRecorder {
	body, err := json.Marshal(payload)
	require.NoError(h.t, err, "Failed to marshal JSON payload")

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	require.NoError(h.t, err, "Failed to create HTTP request")
	req.Header.Set("Content-Type", "application/json")

	return h.serve(req)
}

// GetJSON performs a GET request expecting JSON response
func (h *HTTPTestHelper) GetJSON(url string) *httptest.ResponseRecorder {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(h.t, err, "Failed to create HTTP request")
	req.Header.Set("Accept", "application/json")

	return h.serve(req)
}

func (h *HTTPTestHelper) serve(req *http.Request) *httptest.ResponseRecorder {
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	h.router.ServeHTTP(recorder, req)
	return recorder
}

// AssertJSONResponse asserts that the response is valid JSON and unmarshals it
func (h *HTTPTestHelper) AssertJSONResponse(recorder *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())
	require.Equal(h.t, "application/json; charset=utf-8", recorder.Header().Get("Content-Type"), "Expected JSON content type")

	err := json.Unmarshal(recorder.Body.Bytes(), target)
	require.NoError(h.t, err, "Failed to unmarshal JSON response")
}

// AssertErrorResponse asserts the error envelope carries the expected code
func (h *HTTPTestHelper) AssertErrorResponse(recorder *httptest.ResponseRecorder, expectedStatus int, expectedCode string) {
	require.Equal(h.t, expectedStatus, recorder.Code, "Unexpected status code: %s", recorder.Body.String())

	var envelope struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	err := json.Unmarshal(recorder.Body.Bytes(), &envelope)
	require.NoError(h.t, err, "Failed to unmarshal error response")
	require.False(h.t, envelope.Success)
	require.Equal(h.t, expectedCode, envelope.Error.Code)
}

// BearerToken mints an HS256 token for userID signed with TestJWTSecret
func BearerToken(t *testing.T, userID string, providerConnected bool) string {
	claims := jwt.MapClaims{
		"sub":               userID,
		"spotify_connected": providerConnected,
		"exp":               time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	require.NoError(t, err)
	return token
}

// MockHTTPServer provides a mock HTTP server for testing external API calls
type MockHTTPServer struct {
	server   *httptest.Server
	handlers map[string]http.HandlerFunc
}

// NewMockHTTPServer creates a new mock HTTP server
func NewMockHTTPServer() *MockHTTPServer {
	m := &MockHTTPServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", m.routeRequest)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock server URL
func (m *MockHTTPServer) URL() string {
	return m.server.URL
}

// Close closes the mock server
func (m *MockHTTPServer) Close() {
	m.server.Close()
}

// On registers a handler for a specific path. Register before issuing requests.
func (m *MockHTTPServer) On(path string, handler http.HandlerFunc) {
	m.handlers[path] = handler
}

func (m *MockHTTPServer) routeRequest(w http.ResponseWriter, r *http.Request) {
	if handler, exists := m.handlers[r.URL.Path]; exists {
		handler(w, r)
		return
	}
	http.NotFound(w, r)
}

// WriteJSON writes body as a JSON response with the given status
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SpotifyTokenResponse creates a mock Spotify token response
func SpotifyTokenResponse(accessToken string) map[string]interface{} {
	return map[string]interface{}{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
}

// SpotifyTrackResponse creates a mock Spotify track response
func SpotifyTrackResponse(trackID, title, artist string) map[string]interface{} {
	return map[string]interface{}{
		"id":   trackID,
		"name": title,
		"artists": []map[string]interface{}{
			{"name": artist},
		},
		"album": map[string]interface{}{
			"name":         "Test Album",
			"release_date": "1975-10-31",
			"images": []map[string]interface{}{
				{"url": "https://example.com/large.jpg", "height": 1000, "width": 1000},
				{"url": "https://example.com/image.jpg", "height": 640, "width": 640},
			},
		},
		"duration_ms": 240000,
		"popularity":  75,
		"preview_url": "https://p.scdn.co/mp3-preview/" + trackID,
		"external_ids": map[string]string{
			"isrc": TestISRC1,
		},
		"external_urls": map[string]string{
			"spotify": "https://open.spotify.com/track/" + trackID,
		},
	}
}

// SpotifySearchResponse creates a mock Spotify search response
func SpotifySearchResponse(tracks ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"tracks": map[string]interface{}{
			"items": tracks,
			"total": len(tracks),
		},
	}
}
