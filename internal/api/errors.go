package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/tracker/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Rule  string `json:"rule,omitempty"`
}

// classify maps an error to its HTTP status and taxonomy name.
func classify(err error) (int, string) {
	var (
		ve *errs.ValidationError
		it *errs.IllegalTransitionError
		ih *errs.InvalidHierarchyError
		cp *errs.CrossProjectError
		nv *errs.NotVisibleError
		nf *errs.NotFoundError
		ce *errs.ConflictError
		se *errs.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &it):
		return http.StatusUnprocessableEntity, "illegal_transition"
	case errors.As(err, &ih):
		return http.StatusUnprocessableEntity, "invalid_hierarchy"
	case errors.As(err, &cp):
		return http.StatusUnprocessableEntity, "cross_project"
	case errors.As(err, &nv):
		return http.StatusUnprocessableEntity, "not_visible"
	case errors.As(err, &nf):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &ce):
		return http.StatusConflict, "conflict"
	case errors.As(err, &se):
		return http.StatusServiceUnavailable, "storage"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, err error) {
	code, kind := classify(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		body.Rule = ve.Rule
	}
	c.Error(err)
	c.AbortWithStatusJSON(code, body)
}

// badRequest reports an undecodable request body.
func badRequest(c *gin.Context, err error) {
	writeError(c, errs.Validation("body_invalid", "%v", err))
}
