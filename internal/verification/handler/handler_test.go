package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	jwttoken "vendorkyc/internal/jwt_token"
	"vendorkyc/internal/verification/extraction"
	"vendorkyc/internal/verification/handler/mocks"
	"vendorkyc/internal/verification/models"
	"vendorkyc/internal/verification/service"
	id "vendorkyc/pkg/domain"
	dErrors "vendorkyc/pkg/domain-errors"
	audit "vendorkyc/pkg/platform/audit"
	"vendorkyc/pkg/platform/httputil"
	"vendorkyc/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/service_mocks.go -package=mocks Service

const adminToken = "ops-token"

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type HandlerSuite struct {
	suite.Suite
	svc      *mocks.MockService
	jwt      *jwttoken.JWTService
	router   chi.Router
	vendor   id.VendorID
	reviewer uuid.UUID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.jwt = jwttoken.NewJWTService("test-signing-key", "vendorkyc", "vendorkyc-api")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(s.svc, logger, jwttoken.NewJWTServiceAdapter(s.jwt), adminToken, WithMaxImageBytes(4<<10))
	s.router = chi.NewRouter()
	h.Register(s.router)
	s.vendor = id.VendorID(uuid.New())
	s.reviewer = uuid.New()
}

func (s *HandlerSuite) token(subject uuid.UUID, role, actor string) string {
	tok, err := s.jwt.GenerateAccessToken(subject, role, actor, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + tok
}

func (s *HandlerSuite) vendorToken() string {
	return s.token(uuid.UUID(s.vendor), "vendor", "")
}

func (s *HandlerSuite) reviewerToken() string {
	return s.token(s.reviewer, "reviewer", "reviewer-ama")
}

func (s *HandlerSuite) multipartUpload(kind string, declaredType string, data []byte) *http.Request {
	req := testutil.NewImageUpload(s.T(), "/v1/verification/documents", kind, declaredType, data)
	req.Header.Set("Authorization", s.vendorToken())
	return req
}

func (s *HandlerSuite) TestUpload() {
	s.Run("stores the image for the token's vendor", func() {
		recID := id.NewRecordID()
		s.svc.EXPECT().
			UploadDocument(gomock.Any(), s.vendor, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.VendorID, req models.UploadRequest) (*service.UploadResult, error) {
				s.Equal(models.ImageFront, req.Kind)
				s.Equal("image/png", req.ContentType)
				return &service.UploadResult{
					Record:     &models.IdentityRecord{ID: recID, VendorID: s.vendor, Status: models.StatusPending},
					Suggestion: &extraction.Extraction{Fields: extraction.Fields{IDNumber: "GHA-123456789-0"}},
				}, nil
			})

		rr := testutil.DoRequest(s.router, s.multipartUpload("front", "image/png", pngHeader))

		s.Equal(http.StatusCreated, rr.Code)
		s.Contains(rr.Body.String(), recID.String())
		s.Contains(rr.Body.String(), `"id_number":"GHA-123456789-0"`)
	})

	s.Run("content type comes from the bytes, not the part header", func() {
		s.svc.EXPECT().
			UploadDocument(gomock.Any(), s.vendor, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ id.VendorID, req models.UploadRequest) (*service.UploadResult, error) {
				s.Equal("text/plain; charset=utf-8", req.ContentType)
				return nil, dErrors.New(dErrors.CodeValidation, "file must be an image")
			})

		rr := testutil.DoRequest(s.router, s.multipartUpload("selfie", "image/jpeg", []byte("definitely not an image")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("oversized images never reach the service", func() {
		big := append(append([]byte{}, pngHeader...), make([]byte, 8<<10)...)
		rr := testutil.DoRequest(s.router, s.multipartUpload("selfie", "image/png", big))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("unknown image kind", func() {
		rr := testutil.DoRequest(s.router, s.multipartUpload("passport_page", "image/png", pngHeader))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

func (s *HandlerSuite) TestAuthentication() {
	s.Run("missing token", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/verification/status"))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("reviewers cannot use vendor routes", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/verification/status")
		req.Header.Set("Authorization", s.reviewerToken())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("vendors cannot use reviewer routes", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/reviews/records/"+id.NewRecordID().String())
		req.Header.Set("Authorization", s.vendorToken())
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusForbidden, rr.Code)
	})
}

func (s *HandlerSuite) submitRequest(body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/verification/submit", body)
	req.Header.Set("Authorization", s.vendorToken())
	return req
}

func (s *HandlerSuite) TestSubmit() {
	valid := map[string]string{
		"id_type":       "National_Card",
		"id_number":     " GHA-123456789-0 ",
		"full_name":     "Kwame   Mensah",
		"date_of_birth": "1990-03-15",
	}

	s.Run("approved", func() {
		risk := 0.1
		s.svc.EXPECT().
			Submit(gomock.Any(), s.vendor, gomock.Any()).
			DoAndReturn(func(ctx context.Context, _ id.VendorID, sub models.Submission) (*models.IdentityRecord, error) {
				s.Equal(models.IDTypeNationalCard, sub.IDType)
				s.Equal("GHA-123456789-0", sub.IDNumber)
				s.Equal("Kwame Mensah", sub.FullName)
				s.Equal(1990, sub.DateOfBirth.Year())
				_, hasDeadline := ctx.Deadline()
				s.True(hasDeadline)
				return &models.IdentityRecord{Status: models.StatusApproved, RiskScore: &risk}, nil
			})

		rr := testutil.DoRequest(s.router, s.submitRequest(valid))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "approved")
	})

	s.Run("providers unavailable asks the caller to retry", func() {
		s.svc.EXPECT().Submit(gomock.Any(), s.vendor, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeProviderUnavailable, "embedding timed out at 10.0.0.3"))

		rr := testutil.DoRequest(s.router, s.submitRequest(valid))
		s.Equal(http.StatusServiceUnavailable, rr.Code)
		resp := testutil.UnmarshalResponse[httputil.ErrorResponse](s.T(), rr)
		s.Equal(string(dErrors.CodeProviderUnavailable), resp.Error)
		s.Contains(resp.ErrorDescription, "try again")
		s.NotContains(resp.ErrorDescription, "10.0.0.3")
	})

	s.Run("duplicate identity", func() {
		s.svc.EXPECT().Submit(gomock.Any(), s.vendor, gomock.Any()).
			Return(&models.IdentityRecord{Status: models.StatusRejected},
				dErrors.New(dErrors.CodeDuplicateIdentity, "this ID is already linked to another registered account"))

		rr := testutil.DoRequest(s.router, s.submitRequest(valid))
		s.Equal(http.StatusConflict, rr.Code)
		resp := testutil.UnmarshalResponse[httputil.ErrorResponse](s.T(), rr)
		s.Equal("this ID is already linked to another registered account", resp.ErrorDescription)
	})

	s.Run("invalid fields never reach the service", func() {
		for name, mutate := range map[string]func(map[string]string){
			"unknown id type":  func(m map[string]string) { m["id_type"] = "library_card" },
			"bad date":         func(m map[string]string) { m["date_of_birth"] = "15/03/1990" },
			"future birthdate": func(m map[string]string) { m["date_of_birth"] = "2999-01-01" },
			"missing name":     func(m map[string]string) { delete(m, "full_name") },
		} {
			body := map[string]string{}
			for k, v := range valid {
				body[k] = v
			}
			mutate(body)
			rr := testutil.DoRequest(s.router, s.submitRequest(body))
			s.Equal(http.StatusBadRequest, rr.Code, name)
		}
	})
}

func (s *HandlerSuite) TestReviewerRoutes() {
	recID := id.NewRecordID()
	base := "/v1/reviews/records/" + recID.String()

	s.Run("override is attributed to the token's actor", func() {
		s.svc.EXPECT().
			Override(gomock.Any(), recID, models.Override{
				Reviewer: "reviewer-ama",
				Action:   models.OverrideReject,
				Note:     "document photo reused across accounts",
			}).
			Return(&models.IdentityRecord{ID: recID, Status: models.StatusRejected, ReviewedBy: "reviewer-ama"}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/override", map[string]string{
			"action": "reject",
			"note":   "  document photo reused across accounts ",
		})
		req.Header.Set("Authorization", s.reviewerToken())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "reviewed_by", "reviewer-ama")
	})

	s.Run("unknown override action", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/override", map[string]string{"action": "approve"})
		req.Header.Set("Authorization", s.reviewerToken())
		rr := testutil.DoRequest(s.router, req)
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("audit trail", func() {
		s.svc.EXPECT().AuditTrail(gomock.Any(), recID).Return([]audit.Entry{
			{RecordID: recID, Action: audit.ActionSubmitted, Actor: "vendor"},
			{RecordID: recID, Action: audit.ActionVerified, Actor: audit.SystemActor},
		}, nil)

		req := testutil.NewRequest(s.T(), http.MethodGet, base+"/audit")
		req.Header.Set("Authorization", s.reviewerToken())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), `"action":"verified"`)
		s.Contains(rr.Body.String(), `"record_id":"`+recID.String()+`"`)
	})

	s.Run("malformed record id", func() {
		req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/reviews/records/not-a-uuid")
		req.Header.Set("Authorization", s.reviewerToken())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *HandlerSuite) TestAdminRoutes() {
	s.Run("admin token is required", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/admin/jobs/trial-reminders"))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("trial reminder run", func() {
		s.svc.EXPECT().SendTrialReminders(gomock.Any()).Return(2, nil)
		req := testutil.NewRequest(s.T(), http.MethodPost, "/admin/jobs/trial-reminders")
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ReminderRunResponse](s.T(), rr)
		s.Equal(2, resp.Sent)
	})

	s.Run("account provisioning", func() {
		vendor := id.VendorID(uuid.New())
		s.svc.EXPECT().
			ProvisionAccount(gomock.Any(), &models.Account{ID: vendor, Email: "efua@example.com", DisplayName: "Efua Stores"}).
			Return(&models.Account{ID: vendor, Email: "efua@example.com", DisplayName: "Efua Stores", Tier: models.TierFree}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts", map[string]string{
			"vendor_id":    vendor.String(),
			"email":        " Efua@Example.com ",
			"display_name": "Efua Stores",
		})
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "tier", models.TierFree)
	})

	s.Run("invalid email", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/accounts", map[string]string{
			"vendor_id":    uuid.NewString(),
			"email":        "not-an-email",
			"display_name": "Efua Stores",
		})
		req.Header.Set("X-Admin-Token", adminToken)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}

// TestStatusHandlerDirect drives the handler without the auth chain, using
// the context helpers the middleware would normally populate.
func TestStatusHandlerDirect(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, "")
	vendor := id.VendorID(uuid.New())

	testutil.Given(t, "a vendor with a processing record", func(t *testing.T) {
		svc.EXPECT().Status(gomock.Any(), vendor).Return(&models.IdentityRecord{VendorID: vendor, Status: models.StatusProcessing}, nil)

		testutil.When(t, "the vendor asks for status", func(t *testing.T) {
			req := testutil.WithVendor(testutil.NewRequest(t, http.MethodGet, "/v1/verification/status"), vendor)
			rr := httptest.NewRecorder()
			h.handleStatus(rr, req)

			testutil.Then(t, "the latest record is returned", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "processing")
			})
		})
	})

	testutil.Given(t, "a vendor with no record", func(t *testing.T) {
		other := id.VendorID(uuid.New())
		svc.EXPECT().Status(gomock.Any(), other).Return(nil, dErrors.New(dErrors.CodeNotFound, "no verification record"))

		req := testutil.WithVendor(testutil.NewRequest(t, http.MethodGet, "/v1/verification/status"), other)
		rr := httptest.NewRecorder()
		h.handleStatus(rr, req)

		testutil.Then(t, "not found is returned", func(t *testing.T) {
			testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
		})
	})
}
