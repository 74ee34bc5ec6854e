package runs

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/patrol/internal/export"
	"github.com/JaimeStill/patrol/internal/items"
	"github.com/JaimeStill/patrol/pkg/handlers"
	"github.com/JaimeStill/patrol/pkg/routes"
	"github.com/JaimeStill/patrol/pkg/storage"
)

// Handler provides HTTP endpoints for run operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
	listSize      int32
}

// NewHandler creates a Handler. maxUploadSize bounds multipart uploads and
// listSize is the default page size for archive listings.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64, listSize int32) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "runs"),
		maxUploadSize: maxUploadSize,
		listSize:      listSize,
	}
}

// Routes returns the route group definition for run endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Start},
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/results", Handler: h.Results},
			{Method: "POST", Pattern: "/{id}/stop", Handler: h.Stop},
			{Method: "POST", Pattern: "/{id}/refine", Handler: h.Refine},
			{Method: "GET", Pattern: "/{id}/export", Handler: h.Export},
			{Method: "POST", Pattern: "/{id}/archive", Handler: h.Archive},
			{Method: "GET", Pattern: "/{id}/archives", Handler: h.Archives},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
		},
	}
}

// Start creates a run from a JSON body or a multipart upload. Multipart
// requests carry listing files in the "files" field and the remaining
// StartCommand fields as form values.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var (
		cmd StartCommand
		err error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		cmd, err = h.decodeMultipart(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&cmd)
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	sum, err := h.sys.Start(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, sum)
}

// List returns every run, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.List())
}

// Find returns the summary of a run.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	sum, err := h.sys.Find(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, sum)
}

// Results returns a run's results ordered by item id. ?risky=true keeps
// only flagged results.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	risky, err := queryBool(r, "risky")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	results, err := h.sys.Results(id, risky)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, results)
}

// Stop requests a stop of the pass in progress.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	sum, err := h.sys.Stop(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, sum)
}

// Refine starts a refinement pass.
func (h *Handler) Refine(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	sum, err := h.sys.Refine(id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusAccepted, sum)
}

// Export downloads a run's results as ?format=csv|xlsx.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	opts, err := exportOptions(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	file, err := h.sys.Export(id, opts)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondFile(w, file.ContentType, file.Name, file.Data)
}

// Archive renders an export and stores it in blob storage.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	opts, err := exportOptions(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	archive, err := h.sys.Archive(r.Context(), id, opts)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, archive)
}

// Archives lists a run's stored exports.
func (h *Handler) Archives(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	maxResults, err := storage.ParseMaxResults(q.Get("max_results"), h.listSize)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	list, err := h.sys.Archives(r.Context(), id, q.Get("marker"), maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, list)
}

// Delete removes an idle run.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	if err := h.sys.Delete(id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decodeMultipart(r *http.Request) (StartCommand, error) {
	var cmd StartCommand

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return cmd, ErrFileTooLarge
	}

	slow, err := formBool(r, "slow")
	if err != nil {
		return cmd, err
	}
	refine, err := formBool(r, "refine")
	if err != nil {
		return cmd, err
	}

	cmd = StartCommand{
		Items:    r.MultipartForm.Value["items"],
		Origin:   r.FormValue("origin"),
		Keys:     r.MultipartForm.Value["keys"],
		Model:    r.FormValue("model"),
		Slow:     slow,
		Refine:   refine,
		Encoding: r.FormValue("encoding"),
		Column:   r.FormValue("column"),
	}

	for _, fh := range r.MultipartForm.File["files"] {
		src, err := readSource(fh)
		if err != nil {
			return cmd, err
		}
		cmd.Sources = append(cmd.Sources, src)
	}

	return cmd, nil
}

func readSource(fh *multipart.FileHeader) (items.Source, error) {
	f, err := fh.Open()
	if err != nil {
		return items.Source{}, fmt.Errorf("%w: open %s: %v", ErrInvalidRequest, fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return items.Source{}, fmt.Errorf("%w: read %s: %v", ErrInvalidRequest, fh.Filename, err)
	}

	return items.Source{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func exportOptions(r *http.Request) (export.Options, error) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return export.Options{}, err
	}

	risky, err := queryBool(r, "risky")
	if err != nil {
		return export.Options{}, err
	}

	return export.Options{Format: format, RiskyOnly: risky}, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	return parseBool(name, r.URL.Query().Get(name))
}

func formBool(r *http.Request, name string) (bool, error) {
	return parseBool(name, r.FormValue(name))
}

func parseBool(name, v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrInvalidRequest, name, v)
	}
	return b, nil
}
