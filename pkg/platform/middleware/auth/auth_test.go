package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vendorkyc/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

type AuthMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve runs the chain and returns the recorder plus the context seen by the
// final handler (nil when it was never reached).
func (s *AuthMiddlewareSuite) serve(v JWTValidator, role requestcontext.Role, header string) (*httptest.ResponseRecorder, *http.Request) {
	var seen *http.Request
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireAuth(v, s.logger)(RequireRole(role)(final))

	req := httptest.NewRequest(http.MethodGet, "/v1/verification/status", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, seen
}

func (s *AuthMiddlewareSuite) TestVendorToken() {
	vendor := uuid.New()
	v := stubValidator{claims: &JWTClaims{Subject: vendor.String(), Role: string(requestcontext.RoleVendor)}}

	rr, seen := s.serve(v, requestcontext.RoleVendor, "Bearer good")

	s.Equal(http.StatusNoContent, rr.Code)
	s.Require().NotNil(seen)
	ctx := seen.Context()
	s.Equal(vendor.String(), requestcontext.VendorID(ctx).String())
	s.Equal(vendor.String(), requestcontext.Actor(ctx), "actor falls back to subject")
	s.Equal(requestcontext.RoleVendor, requestcontext.PrincipalRole(ctx))
}

func (s *AuthMiddlewareSuite) TestReviewerToken() {
	v := stubValidator{claims: &JWTClaims{
		Subject: uuid.NewString(),
		Role:    string(requestcontext.RoleReviewer),
		Actor:   "abena@ops",
	}}

	s.Run("reviewer reaches reviewer routes", func() {
		rr, seen := s.serve(v, requestcontext.RoleReviewer, "Bearer good")
		s.Equal(http.StatusNoContent, rr.Code)
		s.Equal("abena@ops", requestcontext.Actor(seen.Context()))
	})

	s.Run("reviewer cannot use vendor routes", func() {
		rr, seen := s.serve(v, requestcontext.RoleVendor, "Bearer good")
		s.Equal(http.StatusForbidden, rr.Code)
		s.Nil(seen)
	})
}

func (s *AuthMiddlewareSuite) TestRejections() {
	vendorClaims := &JWTClaims{Subject: uuid.NewString(), Role: string(requestcontext.RoleVendor)}

	cases := []struct {
		name   string
		v      JWTValidator
		header string
	}{
		{"missing header", stubValidator{claims: vendorClaims}, ""},
		{"not a bearer token", stubValidator{claims: vendorClaims}, "Basic abc"},
		{"empty bearer", stubValidator{claims: vendorClaims}, "Bearer "},
		{"invalid token", stubValidator{err: errors.New("expired")}, "Bearer bad"},
		{"unknown role", stubValidator{claims: &JWTClaims{Subject: uuid.NewString(), Role: "admin"}}, "Bearer good"},
		{"vendor subject not a uuid", stubValidator{claims: &JWTClaims{Subject: "vendor-1", Role: "vendor"}}, "Bearer good"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rr, seen := s.serve(tc.v, requestcontext.RoleVendor, tc.header)
			s.Equal(http.StatusUnauthorized, rr.Code)
			s.Nil(seen)
		})
	}
}
