package prompts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/prompts"
	"github.com/JaimeStill/patrol/pkg/pagination"
)

type mockSystem struct {
	listFn         func(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error)
	findFn         func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	instructionsFn func(ctx context.Context, stage prompts.Stage) (string, error)
	createFn       func(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error)
	updateFn       func(ctx context.Context, id uuid.UUID, cmd prompts.UpdateCommand) (*prompts.Prompt, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
	activateFn     func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
	deactivateFn   func(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error)
}

func (m *mockSystem) Handler() *prompts.Handler { return newTestHandler(m) }

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Instructions(ctx context.Context, stage prompts.Stage) (string, error) {
	return m.instructionsFn(ctx, stage)
}

func (m *mockSystem) Spec(_ context.Context, stage prompts.Stage) (string, error) {
	return prompts.Spec(stage)
}

func (m *mockSystem) Create(ctx context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error) {
	return m.createFn(ctx, cmd)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, cmd prompts.UpdateCommand) (*prompts.Prompt, error) {
	return m.updateFn(ctx, id, cmd)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Activate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.activateFn(ctx, id)
}

func (m *mockSystem) Deactivate(ctx context.Context, id uuid.UUID) (*prompts.Prompt, error) {
	return m.deactivateFn(ctx, id)
}

func newTestHandler(sys prompts.System) *prompts.Handler {
	return prompts.NewHandler(
		sys,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
	)
}

func setupMux(h *prompts.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		mux.HandleFunc(route.Method+" "+group.Prefix+route.Pattern, route.Handler)
	}
	return mux
}

func samplePrompt() prompts.Prompt {
	return prompts.Prompt{
		ID:           uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
		Name:         "strict-ip",
		Stage:        prompts.StageScreen,
		Instructions: "Flag every brand name as High.",
		Description:  ptr("Stricter trademark screening"),
	}
}

func serve(mux *http.ServeMux, method, target string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerList(t *testing.T) {
	p := samplePrompt()
	var captured prompts.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			captured = filters
			result := pagination.NewPageResult([]prompts.Prompt{p}, 1, page.Page, page.PageSize)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	rec := serve(mux, "GET", "/prompts?stage=screen&active=false", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[prompts.Prompt]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("total = %d, len = %d, want 1, 1", result.Total, len(result.Data))
	}
	if result.Data[0].Name != "strict-ip" {
		t.Errorf("name = %q, want strict-ip", result.Data[0].Name)
	}
	if captured.Stage == nil || *captured.Stage != prompts.StageScreen {
		t.Errorf("stage filter = %v, want screen", captured.Stage)
	}
	if captured.Active == nil || *captured.Active {
		t.Errorf("active filter = %v, want false", captured.Active)
	}
}

func TestHandlerStages(t *testing.T) {
	mux := setupMux(newTestHandler(&mockSystem{}))

	rec := serve(mux, "GET", "/prompts/stages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stages []prompts.Stage
	if err := json.NewDecoder(rec.Body).Decode(&stages); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stages) != 2 || stages[0] != prompts.StageScreen || stages[1] != prompts.StageRefine {
		t.Errorf("stages = %v, want [screen refine]", stages)
	}
}

func TestHandlerFind(t *testing.T) {
	p := samplePrompt()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*prompts.Prompt, error) {
			if id == p.ID {
				return &p, nil
			}
			return nil, prompts.ErrNotFound
		},
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/prompts/" + p.ID.String(), http.StatusOK},
		{"invalid uuid", "/prompts/not-a-uuid", http.StatusBadRequest},
		{"missing", "/prompts/" + uuid.New().String(), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, "GET", tt.target, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerStageContent(t *testing.T) {
	sys := &mockSystem{
		instructionsFn: func(_ context.Context, stage prompts.Stage) (string, error) {
			if stage == prompts.StageScreen {
				return "override", nil
			}
			return prompts.Instructions(stage)
		},
	}
	mux := setupMux(newTestHandler(sys))

	t.Run("instructions return active override", func(t *testing.T) {
		rec := serve(mux, "GET", "/prompts/screen/instructions", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var content prompts.StageContent
		if err := json.NewDecoder(rec.Body).Decode(&content); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if content.Stage != prompts.StageScreen || content.Content != "override" {
			t.Errorf("content = %+v", content)
		}
	})

	t.Run("spec returns default", func(t *testing.T) {
		rec := serve(mux, "GET", "/prompts/refine/spec", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var content prompts.StageContent
		if err := json.NewDecoder(rec.Body).Decode(&content); err != nil {
			t.Fatalf("decode: %v", err)
		}
		want, _ := prompts.Spec(prompts.StageRefine)
		if content.Content != want {
			t.Error("spec content does not match default")
		}
	})

	for _, target := range []string{"/prompts/classify/instructions", "/prompts/classify/spec"} {
		t.Run("invalid stage "+target, func(t *testing.T) {
			rec := serve(mux, "GET", target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandlerSearch(t *testing.T) {
	var capturedPage pagination.PageRequest
	var capturedFilters prompts.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, filters prompts.Filters) (*pagination.PageResult[prompts.Prompt], error) {
			capturedPage = page
			capturedFilters = filters
			result := pagination.NewPageResult([]prompts.Prompt{}, 0, page.Page, page.PageSize)
			return &result, nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	t.Run("normalizes pagination and forwards filters", func(t *testing.T) {
		body, _ := json.Marshal(prompts.SearchRequest{
			Filters: prompts.Filters{Name: ptr("strict")},
		})

		rec := serve(mux, "POST", "/prompts/search", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if capturedPage.Page != 1 || capturedPage.PageSize != 20 {
			t.Errorf("page = %+v, want page 1 size 20", capturedPage)
		}
		if capturedFilters.Name == nil || *capturedFilters.Name != "strict" {
			t.Errorf("name filter = %v, want strict", capturedFilters.Name)
		}
	})

	t.Run("invalid json returns 400", func(t *testing.T) {
		rec := serve(mux, "POST", "/prompts/search", []byte("{"))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerCreate(t *testing.T) {
	p := samplePrompt()

	t.Run("creates prompt", func(t *testing.T) {
		var captured prompts.CreateCommand
		sys := &mockSystem{
			createFn: func(_ context.Context, cmd prompts.CreateCommand) (*prompts.Prompt, error) {
				captured = cmd
				return &p, nil
			},
		}
		mux := setupMux(newTestHandler(sys))

		body, _ := json.Marshal(prompts.CreateCommand{
			Name:         "strict-ip",
			Stage:        prompts.StageScreen,
			Instructions: "Flag every brand name as High.",
		})

		rec := serve(mux, "POST", "/prompts", body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		if captured.Name != "strict-ip" || captured.Stage != prompts.StageScreen {
			t.Errorf("captured = %+v", captured)
		}
	})

	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"invalid json", "not json", nil, http.StatusBadRequest},
		{"unknown stage", `{"name":"x","stage":"enhance","instructions":"x"}`, nil, http.StatusBadRequest},
		{"empty prompt", `{"name":"","stage":"screen","instructions":""}`, prompts.ErrEmptyPrompt, http.StatusBadRequest},
		{"duplicate", `{"name":"x","stage":"screen","instructions":"x"}`, prompts.ErrDuplicate, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				createFn: func(context.Context, prompts.CreateCommand) (*prompts.Prompt, error) {
					return nil, tt.err
				},
			}
			mux := setupMux(newTestHandler(sys))

			rec := serve(mux, "POST", "/prompts", []byte(tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerUpdate(t *testing.T) {
	p := samplePrompt()
	sys := &mockSystem{
		updateFn: func(_ context.Context, id uuid.UUID, cmd prompts.UpdateCommand) (*prompts.Prompt, error) {
			if id != p.ID {
				return nil, prompts.ErrNotFound
			}
			updated := p
			updated.Instructions = cmd.Instructions
			return &updated, nil
		},
	}
	mux := setupMux(newTestHandler(sys))
	body, _ := json.Marshal(prompts.UpdateCommand{
		Name:         "strict-ip",
		Stage:        prompts.StageScreen,
		Instructions: "Flag every brand name as Critical.",
	})

	t.Run("updates prompt", func(t *testing.T) {
		rec := serve(mux, "PUT", "/prompts/"+p.ID.String(), body)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var got prompts.Prompt
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Instructions != "Flag every brand name as Critical." {
			t.Errorf("instructions = %q", got.Instructions)
		}
	})

	t.Run("missing returns 404", func(t *testing.T) {
		rec := serve(mux, "PUT", "/prompts/"+uuid.New().String(), body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid uuid returns 400", func(t *testing.T) {
		rec := serve(mux, "PUT", "/prompts/nope", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerDelete(t *testing.T) {
	p := samplePrompt()
	sys := &mockSystem{
		deleteFn: func(_ context.Context, id uuid.UUID) error {
			if id != p.ID {
				return prompts.ErrNotFound
			}
			return nil
		},
	}
	mux := setupMux(newTestHandler(sys))

	if rec := serve(mux, "DELETE", "/prompts/"+p.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec := serve(mux, "DELETE", "/prompts/"+uuid.New().String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerActivation(t *testing.T) {
	p := samplePrompt()
	toggle := func(active bool) func(context.Context, uuid.UUID) (*prompts.Prompt, error) {
		return func(_ context.Context, id uuid.UUID) (*prompts.Prompt, error) {
			if id != p.ID {
				return nil, prompts.ErrNotFound
			}
			out := p
			out.Active = active
			return &out, nil
		}
	}
	sys := &mockSystem{
		activateFn:   toggle(true),
		deactivateFn: toggle(false),
	}
	mux := setupMux(newTestHandler(sys))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantActive bool
	}{
		{"activate", "/prompts/" + p.ID.String() + "/activate", http.StatusOK, true},
		{"deactivate", "/prompts/" + p.ID.String() + "/deactivate", http.StatusOK, false},
		{"activate missing", "/prompts/" + uuid.New().String() + "/activate", http.StatusNotFound, false},
		{"deactivate invalid uuid", "/prompts/bad/deactivate", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(mux, "POST", tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			var got prompts.Prompt
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Active != tt.wantActive {
				t.Errorf("active = %v, want %v", got.Active, tt.wantActive)
			}
		})
	}
}
