package testutil

import (
	"net/http"

	id "vendorkyc/pkg/domain"
	"vendorkyc/pkg/requestcontext"
)

// WithVendor places an authenticated vendor principal on the request, as the
// auth middleware would.
func WithVendor(req *http.Request, vendorID id.VendorID) *http.Request {
	ctx := requestcontext.WithVendorID(req.Context(), vendorID)
	ctx = requestcontext.WithRole(ctx, requestcontext.RoleVendor)
	ctx = requestcontext.WithActor(ctx, vendorID.String())
	return req.WithContext(ctx)
}
