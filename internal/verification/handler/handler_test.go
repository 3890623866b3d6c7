package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"verity/internal/platform/middleware"
	"verity/internal/ratelimit/bucket"
	"verity/internal/verification/models"
	id "verity/pkg/domain"
	dErrors "verity/pkg/domain-errors"
	"verity/pkg/testutil"
)

type fakeService struct {
	record *models.VerificationRecord
	err    error

	startedUserID   id.UserID
	startedDocType  id.DocumentType
	startedImage    []byte
	continuedSelfie []byte
	statusID        id.VerificationID
}

func (f *fakeService) Start(_ context.Context, userID id.UserID, documentType id.DocumentType, image []byte) (*models.VerificationRecord, error) {
	f.startedUserID = userID
	f.startedDocType = documentType
	f.startedImage = image
	return f.record, f.err
}

func (f *fakeService) ContinueWithFace(_ context.Context, recordID id.VerificationID, selfie []byte) (*models.VerificationRecord, error) {
	f.statusID = recordID
	f.continuedSelfie = selfie
	return f.record, f.err
}

func (f *fakeService) GetStatus(_ context.Context, recordID id.VerificationID) (*models.VerificationRecord, error) {
	f.statusID = recordID
	return f.record, f.err
}

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token == "valid-token" {
		return &middleware.JWTClaims{UserID: "user-123"}, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type multiUserValidator struct{}

func (multiUserValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	switch token {
	case "token-alpha":
		return &middleware.JWTClaims{UserID: "user-alpha"}, nil
	case "token-beta":
		return &middleware.JWTClaims{UserID: "user-beta"}, nil
	}
	return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
}

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	router  chi.Router
	now     time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{}
	s.now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	h := New(
		s.service,
		slog.New(slog.DiscardHandler),
		stubValidator{},
		bucket.NewInMemoryBucketStore(),
		100,
		time.Minute,
		10<<20,
	)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) inProgressRecord() *models.VerificationRecord {
	record, err := models.NewVerificationRecord(id.NewVerificationID(), "user-123", id.DocumentTypePassport, s.now)
	s.Require().NoError(err)
	s.Require().NoError(record.MarkInProgress(s.now))
	return record
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer valid-token")
	return req
}

func (s *HandlerSuite) TestStartVerification() {
	s.Run("valid submission returns 201 with the record", func() {
		s.service.record = s.inProgressRecord()
		s.service.err = nil

		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "user-123", "document_type": "passport"},
			map[string][]byte{"document": []byte("doc-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.Equal(id.UserID("user-123"), s.service.startedUserID)
		s.Equal(id.DocumentTypePassport, s.service.startedDocType)
		s.Equal([]byte("doc-bytes"), s.service.startedImage)
		testutil.AssertJSONContains(s.T(), rr, "status", "in_progress")
	})

	s.Run("document rejection returns the failed record", func() {
		record := s.inProgressRecord()
		s.Require().NoError(record.MarkFailed("Document has expired", s.now))
		s.service.record = record
		s.service.err = dErrors.New(dErrors.CodeValidation, "Document has expired")

		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "user-123", "document_type": "passport"},
			map[string][]byte{"document": []byte("doc-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "failed")
		testutil.AssertJSONContains(s.T(), rr, "failure_reason", "Document has expired")
	})

	s.Run("missing token rejected", func() {
		req := testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "user-123", "document_type": "passport"},
			map[string][]byte{"document": []byte("doc-bytes")},
		)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("invalid user_id rejected", func() {
		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "x!", "document_type": "passport"},
			map[string][]byte{"document": []byte("doc-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("unknown document_type rejected", func() {
		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "user-123", "document_type": "visa"},
			map[string][]byte{"document": []byte("doc-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("missing document file rejected", func() {
		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications",
			map[string]string{"user_id": "user-123", "document_type": "passport"},
			nil,
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestContinueWithFace() {
	s.Run("completed verification returned", func() {
		record := s.inProgressRecord()
		s.Require().NoError(record.ApplyDocumentResult(map[string]models.FieldValue{"first_name": {Value: "jane"}}, 99, s.now))
		s.Require().NoError(record.ApplyFaceMatch(&models.FaceMatchResult{IsMatch: true, Confidence: 96}, s.now))
		s.Require().NoError(record.MarkCompleted(s.now))
		s.service.record = record
		s.service.err = nil

		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications/"+record.ID.String()+"/face",
			nil,
			map[string][]byte{"selfie": []byte("selfie-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "completed")
		s.Equal(record.ID, s.service.statusID)
		s.Equal([]byte("selfie-bytes"), s.service.continuedSelfie)
	})

	s.Run("malformed id rejected", func() {
		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications/not-a-uuid/face",
			nil,
			map[string][]byte{"selfie": []byte("selfie-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("conflict on terminal record surfaces as 409", func() {
		s.service.record = nil
		s.service.err = dErrors.New(dErrors.CodeConflict, "verification is already completed")

		req := s.authed(testutil.NewMultipartRequest(s.T(), http.MethodPost, "/verifications/"+id.NewVerificationID().String()+"/face",
			nil,
			map[string][]byte{"selfie": []byte("selfie-bytes")},
		))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *HandlerSuite) TestGetStatus() {
	s.Run("returns the record", func() {
		record := s.inProgressRecord()
		s.service.record = record
		s.service.err = nil

		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/"+record.ID.String()))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "id", record.ID.String())
		s.Equal(record.ID, s.service.statusID)
	})

	s.Run("unknown record is 404", func() {
		s.service.record = nil
		s.service.err = dErrors.New(dErrors.CodeNotFound, "verification record not found")

		req := s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/"+id.NewVerificationID().String()))
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})
}

func (s *HandlerSuite) TestRateLimitKeyedByUser() {
	s.service.record = s.inProgressRecord()
	s.service.err = nil

	h := New(
		s.service,
		slog.New(slog.DiscardHandler),
		multiUserValidator{},
		bucket.NewInMemoryBucketStore(),
		1,
		time.Minute,
		10<<20,
	)
	router := chi.NewRouter()
	h.Register(router)

	// Both requests come from the same test client address, so the limiter
	// only separates them if it keys on the authenticated user.
	get := func(token string) *httptest.ResponseRecorder {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/verifications/"+s.service.record.ID.String())
		req.Header.Set("Authorization", "Bearer "+token)
		return testutil.DoRequest(router, req)
	}

	s.Run("each authenticated user gets an independent window", func() {
		testutil.AssertStatusOK(s.T(), get("token-alpha"))
		testutil.AssertStatusOK(s.T(), get("token-beta"))
	})

	s.Run("a user over the limit is throttled", func() {
		testutil.AssertStatus(s.T(), get("token-alpha"), http.StatusTooManyRequests)
	})
}
