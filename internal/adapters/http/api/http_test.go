package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soundscene/pulse/internal/adapters/http/api"
	service "github.com/soundscene/pulse/internal/app"
	"github.com/soundscene/pulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func newTestServer(t *testing.T, opts ...service.Option) (*httptest.Server, *service.Service) {
	t.Helper()

	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(context.Background(), mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, svc
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func registerClip(t *testing.T, ts *httptest.Server, id, genre string, tags ...string) {
	t.Helper()
	tagsJSON, _ := json.Marshal(tags)
	body := fmt.Sprintf(`{
        "id": %q, "owner_id": "owner-1", "title": "clip %s",
        "duration_ms": 30000, "genre": %q, "tags": %s
    }`, id, id, genre, tagsJSON)
	resp := postJSON(t, ts.URL+"/clips", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register clip %s: status %d", id, resp.StatusCode)
	}
}

func TestPostEngagement(t *testing.T) {
	ts, _ := newTestServer(t)
	registerClip(t, ts, "c1", "music", "jazz")

	t.Run("accepts a valid event", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements",
			`{"event_id": "ev-1", "clip_id": "c1", "actor_id": "a1", "kind": "like"}`)
		var ack struct {
			Status  string `json:"status"`
			EventID string `json:"event_id"`
		}
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", resp.StatusCode)
		}
		decodeBody(t, resp, &ack)
		if ack.Status != "accepted" {
			t.Fatalf("status field = %q", ack.Status)
		}
	})

	t.Run("reports a duplicate with 200", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements",
			`{"event_id": "ev-1", "clip_id": "c1", "actor_id": "a1", "kind": "like"}`)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var ack struct {
			Duplicate bool `json:"duplicate"`
		}
		decodeBody(t, resp, &ack)
		if !ack.Duplicate {
			t.Fatal("duplicate flag not set")
		}
	})

	t.Run("generates an event id when missing", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements",
			`{"clip_id": "c1", "actor_id": "a1", "kind": "share"}`)
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", resp.StatusCode)
		}
		var ack struct {
			EventID string `json:"event_id"`
		}
		decodeBody(t, resp, &ack)
		if ack.EventID == "" {
			t.Fatal("expected a generated event id")
		}
	})

	t.Run("rejects an unknown kind", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements",
			`{"event_id": "ev-2", "clip_id": "c1", "actor_id": "a1", "kind": "boost"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements", `{not json`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("rejects a missing clip id", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/engagements",
			`{"event_id": "ev-3", "actor_id": "a1", "kind": "like"}`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})
}

func TestGetTrending(t *testing.T) {
	ts, svc := newTestServer(t)
	registerClip(t, ts, "c1", "music", "jazz")
	registerClip(t, ts, "c2", "news", "politics")

	// Give c1 some engagement and wait for the workers.
	resp := postJSON(t, ts.URL+"/engagements",
		`{"event_id": "ev-1", "clip_id": "c1", "actor_id": "a1", "kind": "share"}`)
	resp.Body.Close()
	waitForShare(t, svc, "c1")

	t.Run("returns the ranked page", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/trending")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
		var page struct {
			Items []struct {
				ClipID string  `json:"clip_id"`
				Score  float64 `json:"score"`
			} `json:"items"`
			Page     int `json:"page"`
			PageSize int `json:"page_size"`
		}
		decodeBody(t, resp, &page)
		if len(page.Items) != 2 {
			t.Fatalf("items = %d, want 2", len(page.Items))
		}
		if page.Items[0].ClipID != "c1" {
			t.Fatalf("top clip = %s, want c1", page.Items[0].ClipID)
		}
		if page.Items[0].Score <= page.Items[1].Score {
			t.Fatal("page not ordered by score")
		}
		if page.Page != 1 || page.PageSize != 20 {
			t.Fatalf("paging defaults = %d/%d", page.Page, page.PageSize)
		}
	})

	t.Run("filters by genre", func(t *testing.T) {
		var page struct {
			Items []struct {
				ClipID string `json:"clip_id"`
			} `json:"items"`
		}
		resp, err := http.Get(ts.URL + "/trending?genre=news")
		if err != nil {
			t.Fatal(err)
		}
		decodeBody(t, resp, &page)
		if len(page.Items) != 1 || page.Items[0].ClipID != "c2" {
			t.Fatalf("unexpected genre page: %+v", page.Items)
		}
	})

	t.Run("rejects an unknown genre", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/trending?genre=opera")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("rejects invalid paging", func(t *testing.T) {
		for _, q := range []string{"?page=0", "?page_size=0", "?page=x", "?page=-1"} {
			resp, err := http.Get(ts.URL + "/trending" + q)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("%s: status = %d, want 400", q, resp.StatusCode)
			}
		}
	})

	t.Run("unknown tag comes back empty", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/trending?tag=nope")
		if err != nil {
			t.Fatal(err)
		}
		var page struct {
			Items []any  `json:"items"`
			Code  string `json:"code"`
		}
		decodeBody(t, resp, &page)
		if len(page.Items) != 0 || page.Code != "" {
			t.Fatalf("unexpected page: %+v", page)
		}
	})
}

func TestGetTrendingStrictTags(t *testing.T) {
	ts, _ := newTestServer(t, service.WithStrictTags(true))
	registerClip(t, ts, "c1", "music", "jazz")

	resp, err := http.Get(ts.URL + "/trending?tag=nope")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var page struct {
		Items []any  `json:"items"`
		Code  string `json:"code"`
	}
	decodeBody(t, resp, &page)
	if page.Code != "unknown_tag" {
		t.Fatalf("code = %q, want unknown_tag", page.Code)
	}
	if len(page.Items) != 0 {
		t.Fatalf("items = %d, want 0", len(page.Items))
	}
}

func TestClipLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("rejects an over-long clip", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/clips", `{
            "id": "long", "owner_id": "o1", "title": "too long",
            "duration_ms": 180000, "genre": "music"
        }`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("rejects an unknown genre", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/clips", `{
            "id": "c9", "owner_id": "o1", "title": "x",
            "duration_ms": 30000, "genre": "opera"
        }`)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("serves the score and honors delete", func(t *testing.T) {
		registerClip(t, ts, "c1", "comedy", "standup")

		resp, err := http.Get(ts.URL + "/clips/c1/score")
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("score status = %d, want 200", resp.StatusCode)
		}
		var score struct {
			ClipID string  `json:"clip_id"`
			Score  float64 `json:"score"`
		}
		decodeBody(t, resp, &score)
		if score.ClipID != "c1" {
			t.Fatalf("clip_id = %q", score.ClipID)
		}

		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/clips/c1", nil)
		delResp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		delResp.Body.Close()
		if delResp.StatusCode != http.StatusOK {
			t.Fatalf("delete status = %d, want 200", delResp.StatusCode)
		}

		gone, err := http.Get(ts.URL + "/clips/c1/score")
		if err != nil {
			t.Fatal(err)
		}
		gone.Body.Close()
		if gone.StatusCode != http.StatusNotFound {
			t.Fatalf("deleted clip score status = %d, want 404", gone.StatusCode)
		}
	})

	t.Run("404s an unknown clip", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/clips/ghost/score")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestRebuildAndStats(t *testing.T) {
	ts, svc := newTestServer(t)
	registerClip(t, ts, "c1", "music")

	resp := postJSON(t, ts.URL+"/engagements",
		`{"event_id": "ev-1", "clip_id": "c1", "actor_id": "a1", "kind": "share"}`)
	resp.Body.Close()
	waitForShare(t, svc, "c1")

	t.Run("rebuild responds ok", func(t *testing.T) {
		resp := postJSON(t, ts.URL+"/rebuild", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("stats expose service state", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/stats")
		if err != nil {
			t.Fatal(err)
		}
		var stats map[string]any
		decodeBody(t, resp, &stats)
		if stats["started"] != true {
			t.Fatalf("stats = %+v", stats)
		}
	})

	t.Run("healthz serves the metrics exposition", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})
}

func waitForShare(t *testing.T, svc *service.Service, clipID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ranked, err := svc.ClipScore(context.Background(), clipID)
		if err == nil && ranked.Clip.ShareCount >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("clip %s never recorded the share", clipID)
}
