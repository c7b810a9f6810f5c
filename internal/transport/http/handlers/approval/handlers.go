package approvalhandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"intranet/internal/domain/approval"
	"intranet/internal/domain/auth"
	"intranet/internal/transport/http/api"
	"intranet/internal/transport/http/middleware"
	"intranet/internal/transport/http/shared"
)

type Handler struct {
	Service     *approval.Service
	Idempotency middleware.IdempotencyStore
}

const draftEndpoint = "documents.draft"

func NewHandler(service *approval.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Post("/", h.handleDraft)
		r.With(middleware.RequirePermission(auth.PermDocumentsApprove)).Get("/pending", h.handleListPending)
		r.With(middleware.RequirePermission(auth.PermDocumentsApprove)).Get("/pending/count", h.handleCountPending)
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Get("/drafts", h.handleListDrafted)
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Get("/search", h.handleSearch)
		r.Get("/{documentID}", h.handleGet)
		r.Get("/{documentID}/pdf", h.handleExportPDF)
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Put("/{documentID}/lines", h.handleSetLines)
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Post("/{documentID}/submit", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermDocumentsApprove)).Post("/{documentID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermDocumentsApprove)).Post("/{documentID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermDocumentsWrite)).Post("/{documentID}/cancel", h.handleCancel)
	})
	r.Route("/delegations", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermDelegate))
		r.Post("/", h.handleDelegate)
		r.Get("/", h.handleListDelegations)
	})
}

type draftRequest struct {
	Type        string                `json:"type"`
	Title       string                `json:"title"`
	Content     string                `json:"content"`
	FormData    json.RawMessage       `json:"formData"`
	Urgency     string                `json:"urgency"`
	Payload     json.RawMessage       `json:"payload"`
	References  []string              `json:"references"`
	Attachments []approval.Attachment `json:"attachments"`
}

type linesRequest struct {
	Lines []approval.LineSpec `json:"lines"`
}

type decisionRequest struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

type delegateRequest struct {
	DelegateID string `json:"delegateId"`
	ValidFrom  string `json:"validFrom"`
	ValidTo    string `json:"validTo"`
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	idempotencyKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	var requestHash string
	if idempotencyKey != "" && h.Idempotency != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
				return
			}
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
		requestHash = middleware.RequestHash(body)
		stored, found, err := middleware.CheckIdempotency(r.Context(), h.Idempotency, user.UserID, draftEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			api.FailErr(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		if found {
			api.Created(w, stored, middleware.GetRequestID(r.Context()))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	var payload draftRequest
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	v := shared.NewValidator()
	v.Required("type", payload.Type, "required")
	v.Required("title", payload.Title, "required")
	v.Enum("urgency", payload.Urgency, []string{string(approval.UrgencyNormal), string(approval.UrgencyUrgent)}, "must be NORMAL or URGENT")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	docType := approval.DocumentType(strings.ToUpper(strings.TrimSpace(payload.Type)))
	var detail approval.Payload
	if len(bytes.TrimSpace(payload.Payload)) > 0 {
		var err error
		detail, err = approval.DecodePayload(docType, payload.Payload)
		if err != nil {
			api.FailErr(w, err, middleware.GetRequestID(r.Context()))
			return
		}
	}

	doc, err := h.Service.Draft(r.Context(), approval.DraftInput{
		Type:        docType,
		Title:       payload.Title,
		Content:     payload.Content,
		FormData:    payload.FormData,
		DrafterID:   user.UserID,
		Urgency:     approval.Urgency(strings.ToUpper(strings.TrimSpace(payload.Urgency))),
		Payload:     detail,
		References:  payload.References,
		Attachments: payload.Attachments,
	})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if requestHash != "" {
		encoded, err := json.Marshal(doc)
		if err == nil {
			err = middleware.SaveIdempotency(r.Context(), h.Idempotency, user.UserID, draftEndpoint, idempotencyKey, requestHash, encoded)
		}
		if err != nil {
			slog.Warn("idempotency save failed", "err", err, "document_id", doc.ID, "request_id", middleware.GetRequestID(r.Context()))
		}
	}
	api.Created(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	doc, err := h.Service.GetDocumentFor(r.Context(), chi.URLParam(r, "documentID"), user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	docID := chi.URLParam(r, "documentID")
	var buf bytes.Buffer
	if err := h.Service.ExportPDF(r.Context(), docID, user.UserID, &buf); err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+docID+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleSetLines(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload linesRequest
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	doc, err := h.Service.SetApprovalLines(r.Context(), chi.URLParam(r, "documentID"), user.UserID, payload.Lines)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	doc, err := h.Service.Submit(r.Context(), chi.URLParam(r, "documentID"), user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload decisionRequest
	if !decodeOptional(w, r, &payload) {
		return
	}
	doc, err := h.Service.Approve(r.Context(), chi.URLParam(r, "documentID"), user.UserID, payload.Comment)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload decisionRequest
	if !decodeOptional(w, r, &payload) {
		return
	}
	reason := payload.Reason
	if strings.TrimSpace(reason) == "" {
		reason = payload.Comment
	}
	doc, err := h.Service.Reject(r.Context(), chi.URLParam(r, "documentID"), user.UserID, reason)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	doc, err := h.Service.Cancel(r.Context(), chi.URLParam(r, "documentID"), user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, doc, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 20, 100)
	list, err := h.Service.GetPendingDocuments(r.Context(), user.UserID, approval.Page{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	writeList(w, r, list)
}

func (h *Handler) handleCountPending(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	count, err := h.Service.CountPendingDocuments(r.Context(), user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]int{"count": count}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDrafted(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, 20, 100)
	list, err := h.Service.GetDraftedDocuments(r.Context(), user.UserID, approval.Page{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	writeList(w, r, list)
}

// handleSearch is directory wide; opening a match still requires taking
// part in it.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 20, 100)
	list, err := h.Service.SearchDocuments(r.Context(), r.URL.Query().Get("q"), approval.Page{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	writeList(w, r, list)
}

func (h *Handler) handleDelegate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload delegateRequest
	if !shared.DecodeJSON(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	v := shared.NewValidator()
	v.Required("delegateId", payload.DelegateID, "required")
	in := approval.DelegateInput{ApproverID: user.UserID, DelegateID: payload.DelegateID}
	if strings.TrimSpace(payload.ValidFrom) != "" {
		in.ValidFrom, _ = v.Date("validFrom", payload.ValidFrom)
	}
	if strings.TrimSpace(payload.ValidTo) != "" {
		in.ValidTo, _ = v.Date("validTo", payload.ValidTo)
	}
	v.DateOrder("validFrom", in.ValidFrom, "validTo", in.ValidTo)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	d, err := h.Service.Delegate(r.Context(), in)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, d, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDelegations(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	items, err := h.Service.ListDelegations(r.Context(), user.UserID)
	if err != nil {
		api.FailErr(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

// decodeOptional accepts an empty body for decisions without a comment.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return shared.DecodeJSON(w, r, dst, middleware.GetRequestID(r.Context()))
}

func writeList(w http.ResponseWriter, r *http.Request, list approval.DocumentList) {
	w.Header().Set("X-Total-Count", strconv.Itoa(list.Total))
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}
