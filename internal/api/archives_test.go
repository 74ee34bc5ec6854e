package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/patrol/pkg/lifecycle"
	"github.com/JaimeStill/patrol/pkg/routes"
	"github.com/JaimeStill/patrol/pkg/storage"
)

type memoryStore struct {
	blobs map[string][]byte
}

func (m *memoryStore) Start(*lifecycle.Coordinator) error { return nil }

func (m *memoryStore) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	m.blobs[key] = data
	return err
}

func (m *memoryStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Find(_ context.Context, key string) (*storage.BlobMeta, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobMeta{Name: key, ContentType: "text/csv", ContentLength: int64(len(data))}, nil
}

func (m *memoryStore) List(_ context.Context, prefix, _ string, _ int32) (*storage.BlobList, error) {
	list := &storage.BlobList{}
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			list.Blobs = append(list.Blobs, storage.BlobMeta{Name: key})
		}
	}
	return list, nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func archiveMux() *http.ServeMux {
	store := &memoryStore{blobs: map[string][]byte{
		"exports/run-1/ip_check_all_1.csv": []byte("a,b\r\n"),
		"exports/run-2/ip_check_all_2.csv": []byte("c,d\r\n"),
		"private/secret.txt":               []byte("no"),
	}}
	h := newArchiveHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)), "exports/", 50)

	mux := http.NewServeMux()
	routes.Register(mux, h.routes())
	return mux
}

func TestArchiveList(t *testing.T) {
	mux := archiveMux()

	tests := []struct {
		path  string
		want  int
		blobs int
	}{
		{"/archives", http.StatusOK, 2},
		{"/archives?run=run-1", http.StatusOK, 1},
		{"/archives?max_results=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
			continue
		}
		if tt.want != http.StatusOK {
			continue
		}

		var list storage.BlobList
		if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(list.Blobs) != tt.blobs {
			t.Errorf("%s: blobs = %d, want %d", tt.path, len(list.Blobs), tt.blobs)
		}
	}
}

func TestArchiveDownload(t *testing.T) {
	mux := archiveMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archives/download/run-1/ip_check_all_1.csv", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "a,b\r\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "ip_check_all_1.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
}

func TestArchiveKeysStayUnderPrefix(t *testing.T) {
	mux := archiveMux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/archives/download/missing.csv", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	h := &archiveHandler{prefix: "exports/"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetPathValue("key", "../private/secret.txt")
	if got := h.key(req); got != "exports/private/secret.txt" {
		t.Errorf("key = %q, want exports/private/secret.txt", got)
	}
}
