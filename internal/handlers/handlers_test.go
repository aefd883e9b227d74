package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/example/signkit/internal/auth"
	"github.com/example/signkit/internal/gemini"
	"github.com/example/signkit/internal/usecase"
)

const testJWTSecret = "test-secret"

type stubRecognizer struct {
	result *usecase.Recognition
	err    error
	wait   bool
	calls  int
	got    []byte
}

func (s *stubRecognizer) IdentifyImage(ctx context.Context, data []byte) (*usecase.Recognition, error) {
	s.calls++
	s.got = data
	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.result, s.err
}

func newTestRouter(uc Recognizer, mw gin.HandlerFunc, opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router, uc, mw, opts)
	return router
}

func postImage(t *testing.T, router *gin.Engine, contentType string, payload []byte, token string) *httptest.ResponseRecorder {
	t.Helper()
	body, formType := buildMultipartBody(t, contentType, payload)
	req := httptest.NewRequest(http.MethodPost, "/api/recognize-sign", body)
	req.Header.Set("Content-Type", formType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body %q: %v", resp.Body.String(), err)
	}
	return body
}

func TestStatus(t *testing.T) {
	router := newTestRouter(&stubRecognizer{}, auth.BearerAuth("", ""), Options{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if decodeBody(t, resp)["status"] != "API is running" {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestRecognizeReturnsSign(t *testing.T) {
	uc := &stubRecognizer{result: &usecase.Recognition{RequestID: "req-1", Label: "Stop", Shape: gemini.ShapeNestedParts}}
	router := newTestRouter(uc, auth.BearerAuth("", ""), Options{Timeout: time.Second})

	resp := postImage(t, router, "image/jpeg", []byte("jpeg-bytes"), "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	body := decodeBody(t, resp)
	if body["sign"] != "Stop" || body["request_id"] != "req-1" {
		t.Fatalf("unexpected body: %v", body)
	}
	if string(uc.got) != "jpeg-bytes" {
		t.Fatalf("handler passed wrong bytes: %q", uc.got)
	}
}

func TestRecognizeRejectsLargeUpload(t *testing.T) {
	uc := &stubRecognizer{}
	router := newTestRouter(uc, auth.BearerAuth("", ""), Options{})

	resp := postImage(t, router, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1), "")

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
	if uc.calls != 0 {
		t.Fatal("recognizer must not be called for oversized uploads")
	}
}

func TestRecognizeRejectsUnsupportedContentType(t *testing.T) {
	router := newTestRouter(&stubRecognizer{}, auth.BearerAuth("", ""), Options{})

	resp := postImage(t, router, "text/plain", []byte("hello"), "")

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestRecognizeRequiresFile(t *testing.T) {
	router := newTestRouter(&stubRecognizer{}, auth.BearerAuth("", ""), Options{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("note", "no image here")
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/recognize-sign", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if decodeBody(t, resp)["error"] != "No file uploaded" {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestRecognizeUpstreamFailureAnswersUnknown(t *testing.T) {
	uc := &stubRecognizer{err: &gemini.StatusError{StatusCode: 429, Body: "quota"}}
	router := newTestRouter(uc, auth.BearerAuth("", ""), Options{})

	resp := postImage(t, router, "image/png", []byte("png"), "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["sign"] != "Unknown" {
		t.Fatalf("unexpected body: %v", body)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "429") {
		t.Fatalf("expected upstream error in body, got %v", body)
	}
}

func TestRecognizeTimeoutAnswersUnknown(t *testing.T) {
	router := newTestRouter(&stubRecognizer{wait: true}, auth.BearerAuth("", ""), Options{Timeout: 10 * time.Millisecond})

	resp := postImage(t, router, "image/png", []byte("png"), "")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := decodeBody(t, resp)
	if body["sign"] != "Unknown (timeout)" || body["error"] != "Processing timed out" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestRecognizeWithAuthEnabled(t *testing.T) {
	uc := &stubRecognizer{result: &usecase.Recognition{Label: "Yield"}}
	router := newTestRouter(uc, auth.BearerAuth(testJWTSecret, ""), Options{})

	if resp := postImage(t, router, "image/png", []byte("png"), ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	resp := postImage(t, router, "image/png", []byte("png"), buildTestToken(t, "user-123"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.Code)
	}
}

func TestSPAFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600); err != nil {
		t.Fatalf("write asset: %v", err)
	}
	router := newTestRouter(&stubRecognizer{}, auth.BearerAuth("", ""), Options{StaticDir: dir})

	tests := []struct {
		path string
		want string
	}{
		{path: "/sign-recognition", want: "<html>app</html>"},
		{path: "/app.js", want: "console.log(1)"},
		{path: "/assets/missing.css", want: "<html>app</html>"},
	}
	for _, tt := range tests {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if resp.Code != http.StatusOK || resp.Body.String() != tt.want {
			t.Fatalf("%s: expected %q, got %d %q", tt.path, tt.want, resp.Code, resp.Body.String())
		}
	}
}

func TestNoRouteWithoutStaticDir(t *testing.T) {
	router := newTestRouter(&stubRecognizer{}, auth.BearerAuth("", ""), Options{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/anything", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}

func buildTestToken(t *testing.T, subject string) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}
