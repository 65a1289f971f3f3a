// Package handler exposes the verification service over HTTP.
//
// Vendors upload images and submit for themselves; the vendor ID always comes
// from the bearer token, never from the request body. Reviewers read records
// and apply overrides. Operational routes sit behind the admin token.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/service"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/httputil"
	"vendorkyc/pkg/platform/middleware/admin"
	"vendorkyc/pkg/platform/middleware/auth"
	request "vendorkyc/pkg/platform/middleware/request"
	"vendorkyc/pkg/requestcontext"
)

// DefaultMaxImageBytes bounds a single uploaded image.
const DefaultMaxImageBytes = 10 << 20

// multipartOverhead leaves room for form fields and boundaries.
const multipartOverhead = 64 << 10

// Service is the verification surface the handler drives.
type Service interface {
	UploadDocument(ctx context.Context, vendorID id.VendorID, req models.UploadRequest) (*service.UploadResult, error)
	Submit(ctx context.Context, vendorID id.VendorID, sub models.Submission) (*models.IdentityRecord, error)
	Status(ctx context.Context, vendorID id.VendorID) (*models.IdentityRecord, error)
	Record(ctx context.Context, recordID id.RecordID) (*models.IdentityRecord, error)
	AuditTrail(ctx context.Context, recordID id.RecordID) ([]audit.Entry, error)
	Override(ctx context.Context, recordID id.RecordID, o models.Override) (*models.IdentityRecord, error)
	ProvisionAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	SendTrialReminders(ctx context.Context) (int, error)
}

type Handler struct {
	svc           Service
	logger        *slog.Logger
	jwtValidator  auth.JWTValidator
	adminToken    string
	maxImageBytes int64
	// submitTimeout bounds the whole submit request, outer deadline included.
	submitTimeout time.Duration
}

type Option func(*Handler)

func WithMaxImageBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImageBytes = n
		}
	}
}

func WithSubmitTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.submitTimeout = d
		}
	}
}

func New(svc Service, logger *slog.Logger, jwtValidator auth.JWTValidator, adminToken string, opts ...Option) *Handler {
	h := &Handler{
		svc:           svc,
		logger:        logger,
		jwtValidator:  jwtValidator,
		adminToken:    adminToken,
		maxImageBytes: DefaultMaxImageBytes,
		submitTimeout: 45 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts all verification routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/verification", func(r chi.Router) {
		r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		r.Use(auth.RequireRole(requestcontext.RoleVendor))
		r.Post("/documents", h.handleUpload)
		r.Post("/submit", h.handleSubmit)
		r.Get("/status", h.handleStatus)
	})

	r.Route("/v1/reviews/records/{recordID}", func(r chi.Router) {
		r.Use(auth.RequireAuth(h.jwtValidator, h.logger))
		r.Use(auth.RequireRole(requestcontext.RoleReviewer))
		r.Get("/", h.handleGetRecord)
		r.Get("/audit", h.handleAuditTrail)
		r.Post("/override", h.handleOverride)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		r.Post("/accounts", h.handleProvisionAccount)
		r.Post("/jobs/trial-reminders", h.handleTrialReminders)
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	vendorID := requestcontext.VendorID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "image exceeds the 10 MiB limit"))
			return
		}
		h.logger.WarnContext(ctx, "invalid multipart upload",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "expected multipart form with kind and file"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	kind, err := models.ParseImageKind(r.FormValue("kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is required"))
		return
	}
	defer file.Close()
	if header.Size > h.maxImageBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "image exceeds the 10 MiB limit"))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload"))
		return
	}

	// The declared part header is not trusted; the content decides.
	contentType := mimetype.Detect(data).String()

	result, err := h.svc.UploadDocument(ctx, vendorID, models.UploadRequest{
		Kind:        kind,
		Data:        data,
		ContentType: contentType,
	})
	if err != nil {
		h.logFailure(ctx, "upload failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.submitTimeout)
	defer cancel()
	rec, err := h.svc.Submit(ctx, requestcontext.VendorID(ctx), req.ToSubmission())
	if err != nil {
		h.logFailure(ctx, "submit failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rec, err := h.svc.Status(ctx, requestcontext.VendorID(ctx))
	if err != nil {
		h.logFailure(ctx, "status lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rec, err := h.svc.Record(ctx, recordID)
	if err != nil {
		h.logFailure(ctx, "record lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

type auditTrailResponse struct {
	RecordID string        `json:"record_id"`
	Entries  []audit.Entry `json:"entries"`
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.svc.AuditTrail(ctx, recordID)
	if err != nil {
		h.logFailure(ctx, "audit trail lookup failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{RecordID: recordID.String(), Entries: entries})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	recordID, err := id.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[OverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.svc.Override(ctx, recordID, models.Override{
		Reviewer: requestcontext.Actor(ctx),
		Action:   models.OverrideAction(req.Action),
		Note:     req.Note,
	})
	if err != nil {
		h.logFailure(ctx, "override failed", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "reviewer override applied",
		"request_id", requestID,
		"record_id", recordID,
		"action", req.Action,
	)
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleProvisionAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[ProvisionAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	account, err := req.ToAccount()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	saved, err := h.svc.ProvisionAccount(ctx, account)
	if err != nil {
		h.logFailure(ctx, "account provisioning failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleTrialReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sent, err := h.svc.SendTrialReminders(ctx)
	if err != nil {
		h.logFailure(ctx, "trial reminder run failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ReminderRunResponse{Sent: sent})
}

// logFailure logs client errors at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", request.GetRequestID(ctx),
		"code", code,
		"error", err,
	}
	if dErrors.ToHTTPStatus(code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, msg, attrs...)
		return
	}
	h.logger.ErrorContext(ctx, msg, attrs...)
}
