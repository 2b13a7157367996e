package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sitecheckout/internal/backend"
	"sitecheckout/internal/catalog"
	"sitecheckout/internal/export"
	"sitecheckout/internal/logger"
	"sitecheckout/internal/middleware"
	"sitecheckout/internal/order"
	"sitecheckout/internal/search"
	"sitecheckout/internal/security"
	"sitecheckout/internal/session"
	"sitecheckout/internal/stock"
	"sitecheckout/internal/ws"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "checkout_session"
)

// Backend is the part of the inventory backend the checkout page talks to directly.
type Backend interface {
	search.Fetcher
	Submit(ctx context.Context, entries []order.Entry) error
}

// StockRunner runs a password-gated stock action.
type StockRunner interface {
	Run(ctx context.Context, a backend.Action, password string) error
}

type Deps struct {
	Sessions *session.Store
	Source   catalog.Source
	Backend  Backend
	Stock    StockRunner
	Hub      *ws.Hub
	// Now dates new rows; nil means time.Now.
	Now func() time.Time
}

// Handler serves the checkout JSON API and the session websocket.
type Handler struct {
	deps Deps
}

var _ StockRunner = (*stock.Service)(nil)

func New(deps Deps) *Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{deps: deps}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	api := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, middleware.APIMiddleware(fn))
	}

	api("POST /api/session", h.CreateSession)
	api("GET /api/state", h.GetState)
	api("GET /api/catalog", h.GetCatalog)
	api("POST /api/rows", h.AddRow)
	api("DELETE /api/rows/{id}", h.DeleteRow)
	api("PATCH /api/rows/{id}", h.UpdateRow)
	api("GET /api/search", h.Search)
	api("POST /api/submit", h.Submit)
	api("POST /api/stock/{action}", h.RunStockAction)
	api("GET /api/export/batch.xlsx", h.ExportBatch)
	api("GET /api/export/stock.xlsx", h.ExportStock)
}

// CreateSession opens a checkout session and loads its reference data once.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.deps.Sessions.Create(r.Context(), h.deps.Source, h.deps.Backend, h.deps.Now)

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	var view StateView
	s.Do(func(f *order.Form) error {
		view = snapshot(s, f)
		return nil
	})
	w.Header().Set(SessionHeader, s.ID)
	middleware.WriteAPISuccess(w, r, view)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var view StateView
	s.Do(func(f *order.Form) error {
		view = snapshot(s, f)
		return nil
	})
	middleware.WriteAPISuccess(w, r, view)
}

func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteAPISuccess(w, r, CatalogView{
		Payload: s.Cache.Catalog().Payload(),
		Foremen: nonNil(s.Cache.Foremen()),
	})
}

func (h *Handler) AddRow(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(f *order.Form) error {
		f.AddRow()
		return nil
	})
}

func (h *Handler) DeleteRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mutate(w, r, func(f *order.Form) error {
		return f.DeleteRow(id)
	})
}

type rowUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// UpdateRow dispatches one field edit to the row controller.
func (h *Handler) UpdateRow(w http.ResponseWriter, r *http.Request) {
	var req rowUpdate
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	id := r.PathValue("id")
	var edit func(c order.RowController) error
	switch strings.ToLower(req.Field) {
	case "date":
		edit = func(c order.RowController) error { return c.OnDateChanged(id, req.Value) }
	case "name":
		edit = func(c order.RowController) error { return c.OnNameChanged(id, req.Value) }
	case "foreman":
		edit = func(c order.RowController) error { return c.OnForemanChanged(id, req.Value) }
	case "item":
		edit = func(c order.RowController) error { return c.OnItemChanged(id, req.Value) }
	case "type":
		edit = func(c order.RowController) error { return c.OnTypeChanged(id, req.Value) }
	case "size":
		edit = func(c order.RowController) error { return c.OnSizeChanged(id, req.Value) }
	case "quantity":
		edit = func(c order.RowController) error { return c.OnQuantityChanged(id, req.Value) }
	default:
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_field",
			"Unknown row field", fmt.Sprintf("field %q", req.Field))
		return
	}

	h.mutate(w, r, func(f *order.Form) error { return edit(f) })
}

type searchResult struct {
	Query string   `json:"query"`
	Names []string `json:"names"`
	// Stale is set when the names are left over from an earlier query.
	Stale bool `json:"stale,omitempty"`
}

// Search returns name suggestions. A failed or superseded lookup keeps the previous
// suggestions.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query().Get("q")
	names, err := s.Suggest.Suggest(r.Context(), q)
	if err != nil {
		if !errors.Is(err, search.ErrSuperseded) {
			logger.LogError("Error fetching name suggestions for %q: %v", q, err)
		}
		prevQuery, prev := s.Suggest.Latest()
		middleware.WriteAPISuccess(w, r, searchResult{Query: prevQuery, Names: nonNil(prev), Stale: true})
		return
	}
	middleware.WriteAPISuccess(w, r, searchResult{Query: strings.TrimSpace(q), Names: nonNil(names)})
}

// Submit validates the batch, posts it and resets the form on success. An invalid batch
// never reaches the backend.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		view      StateView
		submitted int
	)
	err := s.Do(func(f *order.Form) error {
		entries, err := f.Entries()
		if err != nil {
			return err
		}
		if err := h.deps.Backend.Submit(r.Context(), entries); err != nil {
			return err
		}
		submitted = len(entries)
		f.Reset()
		view = snapshot(s, f)
		return nil
	})
	if err != nil {
		logger.LogWarn("Submit for session %s refused: %v", s.ID, err)
		writeError(w, r, err, "submit_failed")
		return
	}

	logger.LogInfo("Session %s submitted %d rows", s.ID, submitted)
	h.deps.Hub.Publish(s.ID, ws.Event{Type: "state", Data: view})
	middleware.WriteAPISuccess(w, r, view)
}

type stockRequest struct {
	Password string `json:"password"`
}

// RunStockAction runs load_stock, download_stock, load_all_data or download_all_data
// once the password is accepted.
func (h *Handler) RunStockAction(w http.ResponseWriter, r *http.Request) {
	action, err := backend.ParseAction(r.PathValue("action"))
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "unknown_action", "Unknown stock action", err.Error())
		return
	}

	var req stockRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request body", err.Error())
		return
	}

	if err := h.deps.Stock.Run(r.Context(), action, req.Password); err != nil {
		writeError(w, r, err, "action_failed")
		return
	}
	middleware.WriteAPISuccess(w, r, map[string]string{"action": string(action), "status": "success"})
}

func (h *Handler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var rows []order.Row
	s.Do(func(f *order.Form) error {
		rows = f.Rows()
		return nil
	})
	writeWorkbook(w, r, "checkout.xlsx", func(out io.Writer) error {
		return export.WriteBatchWorkbook(out, rows)
	})
}

func (h *Handler) ExportStock(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	c := s.Cache.Catalog()
	writeWorkbook(w, r, "stock.xlsx", func(out io.Writer) error {
		return export.WriteStockWorkbook(out, c)
	})
}

func writeWorkbook(w http.ResponseWriter, r *http.Request, filename string, write func(out io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		logger.LogError("Export of %s failed: %v", filename, err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "export_failed", "Could not build the workbook", "")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}

// ServeWS pushes the session state to a websocket client after every change.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	if id == "" {
		id = sessionID(r)
	}
	s, err := h.deps.Sessions.Get(id)
	if err != nil {
		http.Error(w, "checkout session not found", http.StatusNotFound)
		return
	}

	var view StateView
	s.Do(func(f *order.Form) error {
		view = snapshot(s, f)
		return nil
	})
	h.deps.Hub.Serve(s.ID, w, r, &ws.Event{Type: "state", Data: view})
}

// mutate applies fn to the session form, then answers and publishes the new state.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(f *order.Form) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var view StateView
	err := s.Do(func(f *order.Form) error {
		if err := fn(f); err != nil {
			return err
		}
		view = snapshot(s, f)
		return nil
	})
	if err != nil {
		writeError(w, r, err, "")
		return
	}

	h.deps.Hub.Publish(s.ID, ws.Event{Type: "state", Data: view})
	middleware.WriteAPISuccess(w, r, view)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := sessionID(r)
	if id == "" {
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "missing_session", "Checkout session required", "")
		return nil, false
	}
	s, err := h.deps.Sessions.Get(id)
	if err != nil {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "session_not_found", "Checkout session not found or expired", "")
		return nil, false
	}
	return s, true
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// writeError maps domain errors to API errors. rejectedCode names a logical backend
// refusal for the operation at hand.
func writeError(w http.ResponseWriter, r *http.Request, err error, rejectedCode string) {
	var fieldErr *order.FieldError
	var statusErr *backend.StatusError

	switch {
	case errors.As(err, &fieldErr):
		middleware.WriteAPIError(w, r, http.StatusUnprocessableEntity, "incomplete_row", order.ErrIncomplete.Error(), fieldErr.Error())
	case errors.Is(err, security.ErrIncorrectPassword):
		middleware.WriteAPIError(w, r, http.StatusForbidden, "incorrect_password", "Incorrect password", "")
	case errors.Is(err, order.ErrLastRow):
		middleware.WriteAPIError(w, r, http.StatusConflict, "last_row", "The last row cannot be deleted", "")
	case errors.Is(err, order.ErrRowNotFound):
		middleware.WriteAPIError(w, r, http.StatusNotFound, "row_not_found", "Row not found", err.Error())
	case errors.Is(err, order.ErrInvalidOption):
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_option", "Value is not one of the offered options", err.Error())
	case errors.As(err, &statusErr) && rejectedCode != "":
		logger.LogError("Backend refused %s %s: status=%s message=%q", r.Method, r.URL.Path, statusErr.Status, statusErr.Message)
		middleware.WriteAPIError(w, r, http.StatusBadGateway, rejectedCode, "The backend refused the request", "")
	case rejectedCode != "":
		logger.LogError("Backend unreachable for %s %s: %v", r.Method, r.URL.Path, err)
		middleware.WriteAPIError(w, r, http.StatusBadGateway, "backend_unavailable", "The inventory backend could not be reached", "")
	default:
		logger.LogHTTPError(r, http.StatusInternalServerError, err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error", "An internal error occurred", "")
	}
}
