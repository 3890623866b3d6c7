// Package handler exposes the verification workflow over HTTP. Submissions
// arrive as multipart forms because they carry raw image bytes.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"verity/internal/platform/middleware"
	"verity/internal/ratelimit/bucket"
	"verity/internal/transport/http/shared"
	"verity/internal/verification/models"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/requestcontext"
)

// Service defines the verification operations the handler exposes.
type Service interface {
	Start(ctx context.Context, userID id.UserID, documentType id.DocumentType, documentImage []byte) (*models.VerificationRecord, error)
	ContinueWithFace(ctx context.Context, recordID id.VerificationID, selfie []byte) (*models.VerificationRecord, error)
	GetStatus(ctx context.Context, recordID id.VerificationID) (*models.VerificationRecord, error)
}

// Handler handles verification endpoints.
type Handler struct {
	service        Service
	logger         *slog.Logger
	jwtValidator   middleware.JWTValidator
	rateLimits     *bucket.InMemoryBucketStore
	rateLimit      int
	rateWindow     time.Duration
	maxUploadBytes int64
}

// New creates a verification Handler.
func New(
	service Service,
	logger *slog.Logger,
	jwtValidator middleware.JWTValidator,
	rateLimits *bucket.InMemoryBucketStore,
	rateLimit int,
	rateWindow time.Duration,
	maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		logger:         logger,
		jwtValidator:   jwtValidator,
		rateLimits:     rateLimits,
		rateLimit:      rateLimit,
		rateWindow:     rateWindow,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
	router.Use(middleware.RateLimit(h.rateLimits, h.rateLimit, h.rateWindow, h.logger))
	router.Post("/verifications", h.handleStart)
	router.Post("/verifications/{id}/face", h.handleFace)
	router.Get("/verifications/{id}", h.handleStatus)

	r.Mount("/", router)
}

type verificationResponse struct {
	ID              string                       `json:"id"`
	UserID          string                       `json:"user_id"`
	DocumentType    string                       `json:"document_type"`
	Status          string                       `json:"status"`
	DocumentData    map[string]models.FieldValue `json:"document_data,omitempty"`
	FaceMatchResult *models.FaceMatchResult      `json:"face_match_result,omitempty"`
	ConfidenceScore float64                      `json:"confidence_score"`
	FailureReason   string                       `json:"failure_reason,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

func toResponse(record *models.VerificationRecord) verificationResponse {
	return verificationResponse{
		ID:              record.ID.String(),
		UserID:          record.UserID.String(),
		DocumentType:    record.DocumentType.String(),
		Status:          string(record.Status),
		DocumentData:    record.DocumentData,
		FaceMatchResult: record.FaceMatch,
		ConfidenceScore: record.ConfidenceScore,
		FailureReason:   record.FailureReason,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

// handleStart accepts a multipart form with user_id, document_type, and a
// document image, then runs the document step synchronously.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, documentType, image, err := h.parseStartRequest(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid verification request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.Start(ctx, userID, documentType, image)
	if err != nil {
		// A document rejection still produces a persisted failed record;
		// surface it so the client sees both the id and the reason.
		if record != nil && record.Status == models.StatusFailed {
			shared.WriteJSON(w, http.StatusOK, toResponse(record))
			return
		}
		h.logError(ctx, "failed to start verification", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toResponse(record))
}

// handleFace accepts a selfie image for an in-progress verification and runs
// the liveness and face match steps.
func (h *Handler) handleFace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := parseRecordID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	selfie, err := h.readImage(r, "selfie")
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.ContinueWithFace(ctx, recordID, selfie)
	if err != nil {
		if record != nil && record.Status == models.StatusFailed {
			shared.WriteJSON(w, http.StatusOK, toResponse(record))
			return
		}
		h.logError(ctx, "failed to run face verification", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toResponse(record))
}

// handleStatus returns the current state of a verification.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recordID, err := parseRecordID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.GetStatus(ctx, recordID)
	if err != nil {
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			h.logError(ctx, "failed to load verification", err)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, toResponse(record))
}

func (h *Handler) parseStartRequest(r *http.Request) (id.UserID, id.DocumentType, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return "", "", nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
	}

	rawUserID := r.FormValue("user_id")
	if !govalidator.StringLength(rawUserID, "3", "50") || !govalidator.Matches(rawUserID, "^[A-Za-z0-9_-]+$") {
		return "", "", nil, dErrors.New(dErrors.CodeBadRequest, "invalid user_id")
	}

	documentType, err := id.ParseDocumentType(r.FormValue("document_type"))
	if err != nil {
		return "", "", nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid document_type")
	}

	image, err := h.readImage(r, "document")
	if err != nil {
		return "", "", nil, err
	}
	return id.UserID(rawUserID), documentType, image, nil
}

// readImage pulls one uploaded file out of the multipart form.
func (h *Handler) readImage(r *http.Request, field string) ([]byte, error) {
	if r.MultipartForm == nil {
		r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadBytes)
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
		}
	}
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "missing %s image", field)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unreadable %s image", field)
	}
	if len(data) == 0 {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "empty %s image", field)
	}
	return data, nil
}

func parseRecordID(r *http.Request) (id.VerificationID, error) {
	recordID, err := id.ParseVerificationID(chi.URLParam(r, "id"))
	if err != nil {
		return recordID, dErrors.New(dErrors.CodeBadRequest, "invalid verification id")
	}
	return recordID, nil
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
