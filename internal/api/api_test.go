package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/starford/notelog/internal/backend"
	"github.com/starford/notelog/internal/noteservice"
	"github.com/starford/notelog/internal/plugins"
	"github.com/starford/notelog/internal/sse"
	"github.com/starford/notelog/internal/testutil"
)

const fixedNow = 1373500800

// testEnv sets up a temp notes file, the service and the router.
// A non-empty authToken switches the router to token mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWith(t, []string{"file"}, backend.Options{}, authToken != "", authToken, nil)
}

func testEnvWith(t *testing.T, names []string, opts backend.Options, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	t.Helper()
	pm, err := plugins.Load([]string{"datehandler", "todo", "lunch"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	opts.File.Location = testutil.NotesFile(t)
	opts.Builder = pm.Builder()
	coord, err := backend.Open(context.Background(), names, opts)
	if err != nil {
		t.Fatalf("backend.Open: %v", err)
	}
	t.Cleanup(func() { coord.Close() })

	svc := noteservice.NewService(coord, pm, noteservice.WithClock(func() time.Time { return time.Unix(fixedNow, 0) }))
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body %q)", err, w.Body.String())
	}
	return v
}

func TestCreateAndSearch(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]any{"text": "this is a simple test #yolo"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decode[TimestampResponse](t, w).Timestamp; got != fixedNow {
		t.Errorf("timestamp = %d, want %d", got, fixedNow)
	}

	w = do(t, router, http.MethodPost, "/notes", map[string]any{"text": "this is note 2", "timestamp": 1450794188})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes?q=this+!yolo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	resp := decode[NotesResponse](t, w)
	if len(resp.Notes) != 1 || resp.Notes[0].Timestamp != 1450794188 || resp.Notes[0].Text != "this is note 2" {
		t.Errorf("notes = %+v", resp.Notes)
	}

	w = do(t, router, http.MethodGet, "/notes?q=yolo", nil)
	resp = decode[NotesResponse](t, w)
	if len(resp.Notes) != 1 || resp.Notes[0].Text != "today: this is a simple test #yolo" {
		t.Errorf("notes = %+v", resp.Notes)
	}
	if !resp.Notes[0].Time.Equal(time.Unix(fixedNow, 0)) {
		t.Errorf("time = %v", resp.Notes[0].Time)
	}
}

func TestSearchNoMatchesIsEmptyList(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/notes?q=nothing", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); body != "{\"notes\":[]}\n" {
		t.Errorf("body = %q", body)
	}
}

func TestCreateValidation(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/notes", map[string]any{"text": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank text = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodPost, "/notes", map[string]any{"text": "line one\n[Thu Jan  1 00:00:42 1970] forged"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("multi-line text = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", map[string]any{"text": "old text", "timestamp": 100})

	w := do(t, router, http.MethodPut, "/notes/100", map[string]any{"text": "new text", "timestamp": 200})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[NotesResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if len(resp.Notes) != 1 || resp.Notes[0].Timestamp != 200 || resp.Notes[0].Text != "new text" {
		t.Fatalf("notes after update = %+v", resp.Notes)
	}

	w = do(t, router, http.MethodDelete, "/notes/200", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	resp = decode[NotesResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if len(resp.Notes) != 0 {
		t.Errorf("notes after delete = %+v", resp.Notes)
	}

	w = do(t, router, http.MethodDelete, "/notes/200", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete of missing note = %d, want 204", w.Code)
	}
}

func TestUpdateValidation(t *testing.T) {
	router := testEnv(t, "")
	do(t, router, http.MethodPost, "/notes", map[string]any{"text": "old text", "timestamp": 100})

	for _, text := range []string{"", "   ", "two\nlines"} {
		w := do(t, router, http.MethodPut, "/notes/100", map[string]any{"text": text})
		if w.Code != http.StatusBadRequest {
			t.Errorf("update with %q = %d, want 400", text, w.Code)
		}
	}
	resp := decode[NotesResponse](t, do(t, router, http.MethodGet, "/notes", nil))
	if len(resp.Notes) != 1 || resp.Notes[0].Text != "old text" {
		t.Errorf("notes = %+v, want the original note untouched", resp.Notes)
	}
}

func TestInvalidTimestampParam(t *testing.T) {
	router := testEnv(t, "")
	for _, target := range []string{"/notes/abc", "/notes/-1"} {
		if w := do(t, router, http.MethodDelete, target, nil); w.Code != http.StatusBadRequest {
			t.Errorf("DELETE %s = %d, want 400", target, w.Code)
		}
	}
}

func kvOptions(t *testing.T) (backend.Options, *miniredis.Miniredis) {
	t.Helper()
	srv, engine := testutil.Redis(t)
	return backend.Options{KV: backend.KVOptions{
		Engine: engine,
		Source: "api-test",
	}}, srv
}

func TestDeleteWhileInsertInFlight(t *testing.T) {
	opts, srv := kvOptions(t)
	router := testEnvWith(t, []string{"kv"}, opts, false, "", nil)
	do(t, router, http.MethodPost, "/notes", map[string]any{"text": "pending", "timestamp": 100})

	if err := srv.Set("watch:100", "other-writer"); err != nil {
		t.Fatal(err)
	}
	w := do(t, router, http.MethodDelete, "/notes/100", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("delete during insert = %d, want 409", w.Code)
	}
}

func TestCreateReportsStoredTimestamp(t *testing.T) {
	opts, _ := kvOptions(t)
	router := testEnvWith(t, []string{"kv", "file"}, opts, false, "", nil)

	var got []int64
	for _, text := range []string{"first", "second"} {
		w := do(t, router, http.MethodPost, "/notes", map[string]any{"text": text})
		if w.Code != http.StatusCreated {
			t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
		}
		got = append(got, decode[TimestampResponse](t, w).Timestamp)
	}
	if got[0] != fixedNow || got[1] != fixedNow+1 {
		t.Errorf("timestamps = %v, want [%d %d]", got, fixedNow, fixedNow+1)
	}
}

func TestWords(t *testing.T) {
	opts, _ := kvOptions(t)
	router := testEnvWith(t, []string{"file", "kv"}, opts, false, "", nil)
	do(t, router, http.MethodPost, "/notes", map[string]any{"text": "Hello #World", "timestamp": 100})

	w := do(t, router, http.MethodGet, "/words", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[WordsResponse](t, w).Words
	want := []string{"#world", "hello", "world"}
	if len(got) != len(want) {
		t.Fatalf("words = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("words = %v, want %v", got, want)
			break
		}
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	body, _ := json.Marshal(map[string]string{"text": "auth"})
	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := testEnvWith(t, []string{"file"}, backend.Options{}, true, "secret", broker)

	w := do(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := testEnvWith(t, []string{"file"}, backend.Options{}, true, "tok", broker)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)
	router := testEnvWith(t, []string{"file"}, backend.Options{}, true, "tok", broker)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with query token = %d, want 200", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes?access_token=nope", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}
}
