package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/moodpulse/internal/config"
	"github.com/seenimoa/moodpulse/internal/store"
	"github.com/seenimoa/moodpulse/pkg/models"
	"github.com/seenimoa/moodpulse/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func testConfig() *config.Config {
	return &config.Config{
		LLM:      config.LLMConfig{APIKey: "AIzaSyTESTKEY1234567890", Model: "gemini-2.0-flash"},
		Pipeline: config.PipelineConfig{ScheduleHours: []int{0, 8, 12, 16, 20}},
		Store:    config.StoreConfig{RedisURL: "redis://:hunter2@localhost:6379/0"},
		API:      config.APIConfig{Host: "127.0.0.1", Port: 8080},
	}
}

func record(id string, mood models.Mood, updatedAt string) models.AnalysisRecord {
	return models.AnalysisRecord{
		EntityID:  id,
		UpdatedAt: updatedAt,
		Mood:      mood,
		TopicWord: "topic",
		SubTopics: []string{"a", "b"},
		Reason:    "reason",
		Intensity: 90,
		Color:     mood.Color(),
		Translations: map[string]models.Translation{
			"en": {TopicWord: "topic", SubTopics: []string{"a", "b"}, Reason: "reason", DisplayNameLocalized: id},
		},
	}
}

func mustSlot(t *testing.T, label string) utils.Slot {
	t.Helper()
	slot, err := utils.ParseSlotLabel(label)
	if err != nil {
		t.Fatalf("ParseSlotLabel(%q): %v", label, err)
	}
	return slot
}

// testServer builds a server over a temp output directory holding two
// snapshots for "kr" and one for "us".
func testServer(t *testing.T) (*Server, *store.FileStore) {
	t.Helper()
	files := store.NewFileStore(t.TempDir())

	morning := mustSlot(t, "2026-10-17T08")
	noon := mustSlot(t, "2026-10-17T12")
	writes := []struct {
		rec  models.AnalysisRecord
		slot utils.Slot
	}{
		{record("kr", models.MoodCalm, morning.Timestamp), morning},
		{record("kr", models.MoodGreed, noon.Timestamp), noon},
		{record("us", models.MoodConflict, noon.Timestamp), noon},
	}
	for _, w := range writes {
		if err := files.WriteRecord(w.rec, w.slot); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	st := models.Store{
		"kr": record("kr", models.MoodGreed, noon.Timestamp),
		"us": record("us", models.MoodConflict, noon.Timestamp),
	}
	if err := files.WriteStore(st); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	srv := NewServer(testConfig(), files)
	fixed := time.Date(2026, 10, 17, 5, 30, 0, 0, utils.KST)
	srv.now = func() time.Time { return fixed }
	return srv, files
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// decodeData decodes the envelope and unmarshals its data into out.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, out); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

// ════════════════════════════════════════════════════════════════════
// Handler tests
// ════════════════════════════════════════════════════════════════════

func TestHandleHealth(t *testing.T) {
	srv, _ := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, srv, path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
			var data map[string]any
			resp := decodeData(t, rec, &data)
			if !resp.Success {
				t.Error("expected success=true")
			}
			for _, key := range []string{"status", "version", "uptime", "time_kst", "ws_clients"} {
				if _, ok := data[key]; !ok {
					t.Errorf("missing field %q", key)
				}
			}
			if data["status"] != "ok" {
				t.Errorf("status field: got %v", data["status"])
			}
		})
	}
}

func TestHandleMoods(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv, "/api/v1/moods")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var st models.Store
	decodeData(t, rec, &st)
	if len(st) != 2 {
		t.Fatalf("store entries: got %d, want 2", len(st))
	}
	if st["kr"].Mood != models.MoodGreed || st["us"].Mood != models.MoodConflict {
		t.Errorf("moods: got kr=%s us=%s", st["kr"].Mood, st["us"].Mood)
	}
}

func TestHandleMoodsEmptyDir(t *testing.T) {
	srv := NewServer(testConfig(), store.NewFileStore(t.TempDir()))
	rec := get(t, srv, "/api/v1/moods")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var st models.Store
	decodeData(t, rec, &st)
	if len(st) != 0 {
		t.Errorf("expected empty store, got %v", st)
	}
}

func TestHandleMoodsCorruptStoreRebuilds(t *testing.T) {
	srv, files := testServer(t)
	if err := os.WriteFile(filepath.Join(files.Dir(), store.StoreFile), []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/v1/moods")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var st models.Store
	decodeData(t, rec, &st)
	if len(st) != 2 || st["kr"].Mood != models.MoodGreed {
		t.Errorf("rebuilt store: got %+v", st)
	}

	rec = get(t, srv, "/report?format=text")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "[us]") {
		t.Errorf("digest over rebuilt store: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleMood(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		mood   models.Mood
	}{
		{"known", "/api/v1/moods/kr", http.StatusOK, models.MoodGreed},
		{"unknown", "/api/v1/moods/fr", http.StatusNotFound, ""},
		{"unsafe id", "/api/v1/moods/..", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			var got models.AnalysisRecord
			resp := decodeData(t, rec, &got)
			if tt.status != http.StatusOK {
				if resp.Success || resp.Error == "" {
					t.Errorf("expected error envelope, got %+v", resp)
				}
				return
			}
			if got.Mood != tt.mood {
				t.Errorf("mood: got %s, want %s", got.Mood, tt.mood)
			}
		})
	}
}

func TestHandleHistory(t *testing.T) {
	srv, _ := testServer(t)

	tests := []struct {
		path string
		want []string
	}{
		{"/api/v1/moods/kr/history", []string{"2026-10-17T12", "2026-10-17T08"}},
		{"/api/v1/moods/kr/history?limit=1", []string{"2026-10-17T12"}},
		{"/api/v1/moods/kr/history?limit=0", []string{"2026-10-17T12", "2026-10-17T08"}},
		{"/api/v1/moods/kr/history?limit=bogus", []string{"2026-10-17T12", "2026-10-17T08"}},
		{"/api/v1/moods/us/history", []string{"2026-10-17T12"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, srv, tt.path)
			if rec.Code != http.StatusOK {
				t.Fatalf("status: got %d", rec.Code)
			}
			var got HistoryResponse
			decodeData(t, rec, &got)
			if strings.Join(got.Slots, ",") != strings.Join(tt.want, ",") {
				t.Errorf("slots: got %v, want %v", got.Slots, tt.want)
			}
		})
	}

	if rec := get(t, srv, "/api/v1/moods/fr/history"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown entity: got %d, want 404", rec.Code)
	}
}

func TestHandleSnapshot(t *testing.T) {
	srv, _ := testServer(t)

	rec := get(t, srv, "/api/v1/moods/kr/history/2026-10-17T08")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got models.AnalysisRecord
	decodeData(t, rec, &got)
	if got.Mood != models.MoodCalm {
		t.Errorf("mood: got %s, want Calm", got.Mood)
	}

	for _, path := range []string{
		"/api/v1/moods/kr/history/2026-10-17T16",
		"/api/v1/moods/kr/history/not-a-slot",
	} {
		if rec := get(t, srv, path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rec.Code)
		}
	}
}

func TestHandleSlot(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv, "/api/v1/slot")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got SlotResponse
	decodeData(t, rec, &got)
	if got.Current.Label != "2026-10-17T00" {
		t.Errorf("current: got %q, want 2026-10-17T00", got.Current.Label)
	}
	if got.Next.Label != "2026-10-17T08" {
		t.Errorf("next: got %q, want 2026-10-17T08", got.Next.Label)
	}
	if len(got.ScheduleHours) != 5 {
		t.Errorf("schedule hours: got %v", got.ScheduleHours)
	}
	if got.Timezone == "" {
		t.Error("timezone is empty")
	}
}

func TestHandleLastRun(t *testing.T) {
	srv, files := testServer(t)

	if rec := get(t, srv, "/api/v1/runs/last"); rec.Code != http.StatusNotFound {
		t.Fatalf("before any run: got %d, want 404", rec.Code)
	}

	report := &models.RunReport{
		Slot:      "2026-10-17T12",
		UpdatedAt: "2026-10-17T12:00:00+09:00",
		Results: []models.EntityResult{
			{EntityID: "kr", Status: models.StatusUpdated, Headlines: 12},
			{EntityID: "us", Status: models.StatusFailed, Stage: "analyze", Error: "rate limited"},
		},
	}
	if err := files.WriteReport(report); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	rec := get(t, srv, "/api/v1/runs/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got models.RunReport
	decodeData(t, rec, &got)
	if got.Slot != report.Slot || got.Failed() != 1 {
		t.Errorf("report: got slot=%q failed=%d", got.Slot, got.Failed())
	}
}

func TestHandleGetConfigHidesSecrets(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv, "/api/v1/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, secret := range []string{"AIzaSyTESTKEY1234567890", "hunter2"} {
		if strings.Contains(body, secret) {
			t.Errorf("config response leaks %q", secret)
		}
	}
	if !strings.Contains(body, "gemini-2.0-flash") {
		t.Errorf("config response missing model: %s", body)
	}
}

func TestHandleGetConfigKeys(t *testing.T) {
	srv, _ := testServer(t)
	rec := get(t, srv, "/api/v1/config/keys")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	body := rec.Body.String()
	var keys []config.Credential
	decodeData(t, rec, &keys)
	if len(keys) != 2 {
		t.Fatalf("keys: got %d, want 2", len(keys))
	}
	if !keys[0].IsSet || keys[0].Masked != "AIza...7890" {
		t.Errorf("gemini key status: %+v", keys[0])
	}
	if keys[1].Masked != "redis://:xxxxx@localhost:6379/0" {
		t.Errorf("redis url status: %+v", keys[1])
	}
	if strings.Contains(body, "hunter2") {
		t.Error("keys response leaks the redis password")
	}
}

func TestDataFileServer(t *testing.T) {
	srv, _ := testServer(t)

	rec := get(t, srv, "/data/"+store.StoreFile)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var st models.Store
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("raw store is not JSON: %v", err)
	}
	if len(st) != 2 {
		t.Errorf("raw store entries: got %d", len(st))
	}

	if rec := get(t, srv, "/data/latest/kr.json"); rec.Code != http.StatusOK {
		t.Errorf("latest file: got %d", rec.Code)
	}
	if rec := get(t, srv, "/data/latest/zz.json"); rec.Code != http.StatusNotFound {
		t.Errorf("missing file: got %d, want 404", rec.Code)
	}
}

func TestHandleReport(t *testing.T) {
	srv, _ := testServer(t)

	rec := get(t, srv, "/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<svg") || !strings.Contains(body, "Greed") {
		t.Errorf("digest missing chart or mood")
	}

	rec = get(t, srv, "/report?format=text&lang=ko")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("text Content-Type: got %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "Language: ko") || !strings.Contains(body, "[kr]") {
		t.Errorf("text digest: %s", body)
	}
}

func TestReadOnlyRoutes(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT /api/v1/config: got %d, want 405", rec.Code)
	}
}

func TestNotifyRunFlushesCache(t *testing.T) {
	srv, files := testServer(t)

	rec := get(t, srv, "/api/v1/moods/kr")
	var first models.AnalysisRecord
	decodeData(t, rec, &first)

	noon := mustSlot(t, "2026-10-17T12")
	if err := files.WriteRecord(record("kr", models.MoodPanic, noon.Timestamp), noon); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	rec = get(t, srv, "/api/v1/moods/kr")
	var cached models.AnalysisRecord
	decodeData(t, rec, &cached)
	if cached.Mood != first.Mood {
		t.Fatalf("expected cached mood %s, got %s", first.Mood, cached.Mood)
	}

	srv.NotifyRun(&models.RunReport{Slot: noon.Label})

	rec = get(t, srv, "/api/v1/moods/kr")
	var fresh models.AnalysisRecord
	decodeData(t, rec, &fresh)
	if fresh.Mood != models.MoodPanic {
		t.Errorf("after NotifyRun: got %s, want Panic", fresh.Mood)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusBadRequest, "bad input")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d", rec.Code)
	}
	resp := decodeData(t, rec, nil)
	if resp.Success || resp.Error != "bad input" {
		t.Errorf("envelope: %+v", resp)
	}
}

// ════════════════════════════════════════════════════════════════════
// WebSocket Hub tests
// ════════════════════════════════════════════════════════════════════

func runHub(t *testing.T) *WSHub {
	t.Helper()
	hub := NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitForClients(t *testing.T, hub *WSHub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount: got %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWSHub_RegisterAndUnregister(t *testing.T) {
	hub := runHub(t)
	client := &WSClient{hub: hub, send: make(chan WSMessage, 16)}

	if !hub.Register(client) {
		t.Fatal("Register on a running hub returned false")
	}
	waitForClients(t, hub, 1)

	hub.Unregister(client)
	waitForClients(t, hub, 0)

	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestWSHub_Broadcast(t *testing.T) {
	hub := runHub(t)
	clients := []*WSClient{
		{hub: hub, send: make(chan WSMessage, 16)},
		{hub: hub, send: make(chan WSMessage, 16)},
	}
	for _, c := range clients {
		hub.Register(c)
	}
	waitForClients(t, hub, 2)

	hub.Broadcast(WSMessage{Type: "test", Data: "hello"})

	for i, c := range clients {
		select {
		case got := <-c.send:
			if got.Type != "test" {
				t.Errorf("client%d got type=%q, want 'test'", i, got.Type)
			}
		case <-time.After(time.Second):
			t.Errorf("client%d did not receive message", i)
		}
	}
}

func TestWSHub_BroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewWSHub()

	// Nothing drains the hub, so the broadcast buffer fills.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.Broadcast(WSMessage{Type: "test"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked when buffer was full")
	}
}

func TestWSHub_DropsSlowClient(t *testing.T) {
	hub := runHub(t)
	slow := &WSClient{hub: hub, send: make(chan WSMessage)} // never drained
	fast := &WSClient{hub: hub, send: make(chan WSMessage, 16)}
	hub.Register(slow)
	hub.Register(fast)
	waitForClients(t, hub, 2)

	hub.Broadcast(WSMessage{Type: store.EventRunCompleted})
	waitForClients(t, hub, 1)

	select {
	case got := <-fast.send:
		if got.Type != store.EventRunCompleted {
			t.Errorf("fast client got %q", got.Type)
		}
	case <-time.After(time.Second):
		t.Error("fast client did not receive message")
	}
}

func TestWSHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := runHub(t)

	var wg sync.WaitGroup
	clients := make([]*WSClient, 50)
	for i := range clients {
		clients[i] = &WSClient{hub: hub, send: make(chan WSMessage, 16)}
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Register(c)
		}(c)
	}
	wg.Wait()
	waitForClients(t, hub, len(clients))

	for _, c := range clients {
		wg.Add(1)
		go func(c *WSClient) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()
	waitForClients(t, hub, 0)
}

func TestWSHub_StopClosesClients(t *testing.T) {
	hub := NewWSHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	client := &WSClient{hub: hub, send: make(chan WSMessage, 16)}
	hub.Register(client)
	waitForClients(t, hub, 1)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed when the hub stops")
	}

	// A stopped hub refuses new clients and ignores unregisters.
	if hub.Register(&WSClient{hub: hub, send: make(chan WSMessage, 1)}) {
		t.Error("Register on a stopped hub returned true")
	}
	hub.Unregister(client)
}

// ════════════════════════════════════════════════════════════════════
// WebSocket connection test
// ════════════════════════════════════════════════════════════════════

func TestWebSocketRunNotification(t *testing.T) {
	srv, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello WSMessage
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "connected" {
		t.Fatalf("first message: got %q, want connected", hello.Type)
	}
	waitForClients(t, srv.Hub(), 1)

	srv.NotifyRun(&models.RunReport{
		Slot:    "2026-10-17T12",
		Results: []models.EntityResult{{EntityID: "kr", Status: models.StatusUpdated}},
	})

	var got struct {
		Type string           `json:"type"`
		Data models.RunReport `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read run message: %v", err)
	}
	if got.Type != store.EventRunCompleted {
		t.Errorf("type: got %q, want %q", got.Type, store.EventRunCompleted)
	}
	if got.Data.Slot != "2026-10-17T12" || len(got.Data.Results) != 1 {
		t.Errorf("report: %+v", got.Data)
	}
}
