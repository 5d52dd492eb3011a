package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/pkg/address"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// StatusFor maps an operation result onto an HTTP status.
func StatusFor(r protocol.Result) int {
	if r.OK {
		return http.StatusOK
	}
	switch r.Err.Code {
	case protocol.CodeSeasonNotFound, protocol.CodeRegionNotFound, protocol.CodeBidNotFound:
		return http.StatusNotFound
	}
	switch r.Err.Kind {
	case protocol.KindValidation:
		return http.StatusBadRequest
	case protocol.KindPhase, protocol.KindConflict:
		return http.StatusConflict
	case protocol.KindResource:
		return http.StatusPaymentRequired
	case protocol.KindBusy:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(header, "Bearer "), true
}

// submitOperation handles POST /v1/ops/:op.
func (s *Server) submitOperation(c echo.Context) error {
	op, err := protocol.ParseOp(c.Param("op"))
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "%v", err)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read request body")
	}

	token, ok := bearerToken(c)
	if !ok {
		return errorJSON(c, http.StatusUnauthorized, "missing bearer token")
	}

	ctx := c.Request().Context()
	signer, err := s.verifier.Verify(ctx, token, string(op), body)
	if err != nil {
		s.log.WithError(err).WithField("op", op).Debug("request token rejected")
		if errors.Is(err, auth.ErrReplay) {
			return errorJSON(c, http.StatusConflict, "%v", err)
		}
		return errorJSON(c, http.StatusUnauthorized, "%v", err)
	}

	req, err := protocol.DecodeRequest(op, body)
	if err != nil {
		return s.respond(c, op, protocol.ResultOf(address.Zero, err), 0)
	}

	if actor, ok := req.Actor(); ok && actor != signer {
		s.log.WithFields(logrus.Fields{
			"op":     op,
			"signer": signer.Short(),
			"actor":  actor.Short(),
		}).Warn("request signed by a different identity than it acts for")
		return errorJSON(c, http.StatusForbidden, "request acts for %s but is signed by %s", actor.Short(), signer.Short())
	}

	start := time.Now()
	addr, err := s.engine.Execute(ctx, req)
	return s.respond(c, op, protocol.ResultOf(addr, err), time.Since(start))
}

func (s *Server) respond(c echo.Context, op protocol.Op, r protocol.Result, elapsed time.Duration) error {
	outcome := "ok"
	if !r.OK {
		outcome = string(r.Err.Kind)
	}
	s.metrics.RecordOperation(string(op), outcome, elapsed)
	return c.JSON(StatusFor(r), r)
}
