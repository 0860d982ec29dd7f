package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/semanticbrowser/kb/internal/errs"
)

// errorBody is spec.md §6's `{error, kind}` error response shape.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError renders err as JSON with the status errs.HTTPStatus maps
// its kind to. Unrecognised error types are treated as Internal so a
// stray non-*errs.Error never leaks an unclassified 200 or a stack
// trace to the client.
func writeError(c *gin.Context, err error) {
	kind := errs.KindInternal
	msg := "internal error"
	if e, ok := err.(*errs.Error); ok {
		kind = e.Kind
		msg = e.Msg
		if e.Cause != nil {
			httpLog().Error("request failed: %s: %v", e.Msg, e.Cause)
		}
	} else {
		httpLog().Error("unclassified error: %v", err)
	}
	c.JSON(errs.HTTPStatus(kind), errorBody{Error: msg, Kind: string(kind)})
}
