package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/JaimeStill/patrol/internal/inference"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/internal/prompts"
	"github.com/JaimeStill/patrol/pkg/credentials"
)

type call struct {
	model string
	key   string
	body  string
}

type fakeGemini struct {
	mu    sync.Mutex
	calls []call
	reply func(c call) (int, string)
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	model := path[strings.LastIndex(path, "/")+1:]
	model = strings.TrimSuffix(model, ":generateContent")

	c := call{model: model, key: r.Header.Get("x-goog-api-key"), body: string(body)}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()

	status, payload := f.reply(c)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, payload)
}

func textReply(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func errorReply(code int, status string) string {
	return fmt.Sprintf(`{"error":{"code":%d,"message":"simulated","status":%q}}`, code, status)
}

func newClient(t *testing.T, fake *fakeGemini) inference.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := &inference.Config{BaseURL: srv.URL + "/"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return inference.NewGemini(cfg, prompts.Defaults, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var group = []items.Item{
	{ID: 0, Text: "ディズニー風 ぬいぐるみ"},
	{ID: 1, Text: "無地 トートバッグ"},
	{ID: 2, Text: "ダイエット 即効 サプリ"},
}

func TestClassifyBulk(t *testing.T) {
	t.Run("labels without a usable id match no item", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, textReply(
				`[{"risk_level":"Critical","reason":"missing id"},` +
					`{"id":1.9,"risk_level":"High","reason":"fractional"},` +
					`{"id":2,"risk_level":"Low","reason":"ok"}]`,
			)
		}}
		client := newClient(t, fake)

		labels, err := client.ClassifyBulk(context.Background(), group, "key-aaaa", "gemini-2.0-flash")
		if err != nil {
			t.Fatalf("ClassifyBulk error: %v", err)
		}
		if len(labels) != 1 || labels[2].Reason != "ok" {
			t.Errorf("labels = %v, want only id 2", labels)
		}
	})

	t.Run("parses labels for requested ids", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, textReply(
				"```json\n" +
					`[{"id":0,"risk_level":"High","reason":"類似キャラクター"},` +
					`{"id":"1","risk_level":"Low","reason":"問題なし"},` +
					`{"id":0,"risk_level":"Low","reason":"duplicate"},` +
					`{"id":99,"risk_level":"Critical","reason":"invented"}]` +
					"\n```",
			)
		}}
		client := newClient(t, fake)

		labels, err := client.ClassifyBulk(context.Background(), group, "key-aaaa", "gemini-2.0-flash")
		if err != nil {
			t.Fatalf("ClassifyBulk error: %v", err)
		}
		if len(labels) != 2 {
			t.Fatalf("labels = %v, want ids 0 and 1", labels)
		}
		if labels[0].Risk != "High" {
			t.Errorf("label 0 risk = %q, want High (first answer wins)", labels[0].Risk)
		}
		if labels[1].Reason != "問題なし" {
			t.Errorf("label 1 reason = %q", labels[1].Reason)
		}
		if _, ok := labels[99]; ok {
			t.Error("unrequested id kept")
		}

		c := fake.calls[0]
		if c.key != "key-aaaa" {
			t.Errorf("api key header = %q", c.key)
		}
		if c.model != "gemini-2.0-flash" {
			t.Errorf("model = %q", c.model)
		}
		if !strings.Contains(c.body, "ID:2") || !strings.Contains(c.body, "systemInstruction") {
			t.Errorf("request body missing message or system instruction: %s", c.body)
		}
	})

	t.Run("status dispositions", func(t *testing.T) {
		tests := []struct {
			code   int
			status string
			want   inference.Disposition
		}{
			{429, "RESOURCE_EXHAUSTED", inference.RateLimited},
			{404, "NOT_FOUND", inference.ModelNotFound},
			{400, "INVALID_ARGUMENT", inference.BadRequest},
			{401, "UNAUTHENTICATED", inference.Unauthorized},
			{403, "PERMISSION_DENIED", inference.Unauthorized},
			{500, "INTERNAL", inference.Transient},
		}

		for _, tt := range tests {
			t.Run(tt.status, func(t *testing.T) {
				fake := &fakeGemini{reply: func(call) (int, string) {
					return tt.code, errorReply(tt.code, tt.status)
				}}
				client := newClient(t, fake)

				_, err := client.ClassifyBulk(context.Background(), group, "key-bbbb", "gemini-2.0-flash")
				d, ok := inference.DispositionOf(err)
				if !ok {
					t.Fatalf("error %v carries no disposition", err)
				}
				if d != tt.want {
					t.Errorf("disposition = %s, want %s", d, tt.want)
				}
			})
		}
	})

	t.Run("unparseable output is malformed", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, textReply("I cannot help with that.")
		}}
		client := newClient(t, fake)

		_, err := client.ClassifyBulk(context.Background(), group, "key-cccc", "gemini-2.0-flash")
		if d, _ := inference.DispositionOf(err); d != inference.MalformedPayload {
			t.Errorf("disposition = %s, want malformed_payload (err %v)", d, err)
		}
	})

	t.Run("empty candidates are malformed", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, `{"candidates":[]}`
		}}
		client := newClient(t, fake)

		_, err := client.ClassifyBulk(context.Background(), group, "key-dddd", "gemini-2.0-flash")
		if d, _ := inference.DispositionOf(err); d != inference.MalformedPayload {
			t.Errorf("disposition = %s, want malformed_payload", d)
		}
	})

	t.Run("cancelled context returned as is", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, textReply("[]")
		}}
		client := newClient(t, fake)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.ClassifyBulk(ctx, group, "key-eeee", "gemini-2.0-flash")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if _, ok := inference.DispositionOf(err); ok {
			t.Error("cancellation should not carry a disposition")
		}
	})

	t.Run("routes to requested model", func(t *testing.T) {
		fake := &fakeGemini{reply: func(c call) (int, string) {
			if c.model == "gemini-exp" {
				return 404, errorReply(404, "NOT_FOUND")
			}
			return http.StatusOK, textReply(`[{"id":0,"risk_level":"Low","reason":"ok"}]`)
		}}
		client := newClient(t, fake)

		if _, err := client.ClassifyBulk(context.Background(), group, "key-ffff", "gemini-exp"); err == nil {
			t.Fatal("expected model not found")
		}
		labels, err := client.ClassifyBulk(context.Background(), group, "key-ffff", "gemini-2.0-flash")
		if err != nil {
			t.Fatalf("fallback model error: %v", err)
		}
		if len(labels) != 1 {
			t.Errorf("labels = %v", labels)
		}
	})
}

func TestClassifyOne(t *testing.T) {
	t.Run("parses verdict", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return http.StatusOK, textReply(`Here you go: {"final_risk":"Low","detailed_analysis":"一般名称のみ"}`)
		}}
		client := newClient(t, fake)

		v, err := client.ClassifyOne(
			context.Background(),
			items.Item{ID: 3, Text: "くま ぬいぐるみ"},
			inference.Prior{Risk: "Medium", Reason: "キャラクター類似"},
			credentials.Credential("key-gggg"),
			"gemini-2.0-flash",
		)
		if err != nil {
			t.Fatalf("ClassifyOne error: %v", err)
		}
		if v.Risk != "Low" || v.Analysis != "一般名称のみ" {
			t.Errorf("verdict = %+v", v)
		}
		if !strings.Contains(fake.calls[0].body, "キャラクター類似") {
			t.Error("prior reason not sent")
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		fake := &fakeGemini{reply: func(call) (int, string) {
			return 429, errorReply(429, "RESOURCE_EXHAUSTED")
		}}
		client := newClient(t, fake)

		_, err := client.ClassifyOne(context.Background(), items.Item{Text: "x"}, inference.Prior{}, "key-hhhh", "gemini-2.0-flash")
		var f *inference.Failure
		if !errors.As(err, &f) {
			t.Fatalf("error %v is not a Failure", err)
		}
		if f.Disposition != inference.RateLimited || f.Status != 429 {
			t.Errorf("failure = %+v", f)
		}
	})
}
