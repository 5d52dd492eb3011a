package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// HeaderAdminToken carries the administrator secret.
const HeaderAdminToken = "X-Admin-Token"

// credit handles POST /v1/admin/credit, the faucet standing in for the
// external wallet system. Disabled unless an admin token is configured.
func (s *Server) credit(c echo.Context) error {
	if s.adminToken == "" {
		return errorJSON(c, http.StatusNotFound, "admin API disabled")
	}
	presented := c.Request().Header.Get(HeaderAdminToken)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.adminToken)) != 1 {
		return errorJSON(c, http.StatusUnauthorized, "invalid admin token")
	}

	var req CreditRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid credit request")
	}
	if req.Account.IsZero() || req.Amount == 0 {
		return errorJSON(c, http.StatusBadRequest, "account and a positive amount are required")
	}

	ctx := c.Request().Context()
	if err := s.ledger.Credit(ctx, req.Account, req.Amount); err != nil {
		s.log.WithError(err).Error("credit failed")
		return errorJSON(c, http.StatusInternalServerError, "credit failed")
	}
	balance, err := s.ledger.Balance(ctx, req.Account)
	if err != nil {
		return s.readFailed(c, "balance", req.Account, err)
	}

	s.log.WithFields(logrus.Fields{
		"event_type": "account_credited",
		"account":    req.Account.Short(),
		"amount":     req.Amount,
	}).Info("account credited")
	return c.JSON(http.StatusOK, BalanceView{Address: req.Account, Balance: balance})
}
