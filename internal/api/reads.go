package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/mural/internal/resolver"
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, status int, format string, args ...interface{}) error {
	return c.JSON(status, ErrorResponse{Error: fmt.Sprintf(format, args...)})
}

// addrParam parses the :addr path parameter. When it reports false the 400
// response has already been written; the handler returns nil.
func addrParam(c echo.Context) (address.Address, bool) {
	a, err := address.Parse(c.Param("addr"))
	if err != nil {
		if werr := errorJSON(c, http.StatusBadRequest, "invalid address: %v", err); werr != nil {
			c.Logger().Error(werr)
		}
		return address.Zero, false
	}
	return a, true
}

// readFailed maps a ledger read error onto a response.
func (s *Server) readFailed(c echo.Context, what string, a address.Address, err error) error {
	if ledger.IsNotFound(err) {
		return errorJSON(c, http.StatusNotFound, "%s %s not found", what, a.Short())
	}
	s.log.WithError(err).WithField("address", a.String()).Error("ledger read failed")
	return errorJSON(c, http.StatusInternalServerError, "failed to read %s", what)
}

// resolveSeason accepts a full address or a unique prefix in :addr.
func (s *Server) resolveSeason(c echo.Context) (*ledger.Season, error) {
	ctx := c.Request().Context()
	a, err := resolver.ResolveSeason(ctx, s.ledger, c.Param("addr"))
	if err != nil {
		return nil, s.resolveFailed(c, err)
	}
	season, err := s.ledger.GetSeason(ctx, a)
	if err != nil {
		return nil, s.readFailed(c, "season", a, err)
	}
	return season, nil
}

func (s *Server) resolveFailed(c echo.Context, err error) error {
	var amb *resolver.AmbiguousError
	switch {
	case resolver.IsNotFoundError(err):
		return errorJSON(c, http.StatusNotFound, "%v", err)
	case errors.As(err, &amb):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Matches: amb.Matches})
	default:
		return errorJSON(c, http.StatusBadRequest, "%v", err)
	}
}

// getSeason handles GET /v1/seasons/:addr.
func (s *Server) getSeason(c echo.Context) error {
	season, err := s.resolveSeason(c)
	if season == nil {
		return err
	}
	return c.JSON(http.StatusOK, SeasonView{
		Season: *season,
		Phase:  s.engine.PhaseOf(season),
		Now:    s.engine.Now().Unix(),
	})
}

// getPhase handles GET /v1/seasons/:addr/phase.
func (s *Server) getPhase(c echo.Context) error {
	season, err := s.resolveSeason(c)
	if season == nil {
		return err
	}
	return c.JSON(http.StatusOK, PhaseView{
		Season:       season.Address,
		Phase:        s.engine.PhaseOf(season),
		Now:          s.engine.Now().Unix(),
		FundingEndTs: season.FundingEndTs,
		VotingEndTs:  season.VotingEndTs,
		IsFinalized:  season.IsFinalized,
	})
}

// listRegions handles GET /v1/seasons/:addr/regions.
func (s *Server) listRegions(c echo.Context) error {
	season, err := s.resolveSeason(c)
	if season == nil {
		return err
	}
	regions, err := s.ledger.ListRegions(c.Request().Context(), season.Address)
	if err != nil {
		return s.readFailed(c, "regions of season", season.Address, err)
	}
	if regions == nil {
		regions = []*ledger.Region{}
	}
	return c.JSON(http.StatusOK, List[*ledger.Region]{Items: regions})
}

// getRegion handles GET /v1/regions/:addr.
func (s *Server) getRegion(c echo.Context) error {
	a, ok := addrParam(c)
	if !ok {
		return nil
	}
	region, err := s.ledger.GetRegion(c.Request().Context(), a)
	if err != nil {
		return s.readFailed(c, "region", a, err)
	}
	return c.JSON(http.StatusOK, region)
}

// listBids handles GET /v1/regions/:addr/bids. Bids are in submission order.
func (s *Server) listBids(c echo.Context) error {
	a, ok := addrParam(c)
	if !ok {
		return nil
	}
	bids, err := s.ledger.ListBids(c.Request().Context(), a)
	if err != nil {
		return s.readFailed(c, "bids of region", a, err)
	}
	if bids == nil {
		bids = []*ledger.Bid{}
	}
	return c.JSON(http.StatusOK, List[*ledger.Bid]{Items: bids})
}

// getContribution handles GET /v1/contributions/:addr.
func (s *Server) getContribution(c echo.Context) error {
	a, ok := addrParam(c)
	if !ok {
		return nil
	}
	contribution, err := s.ledger.GetContribution(c.Request().Context(), a)
	if err != nil {
		return s.readFailed(c, "contribution", a, err)
	}
	return c.JSON(http.StatusOK, contribution)
}

// getBid handles GET /v1/bids/:addr.
func (s *Server) getBid(c echo.Context) error {
	a, ok := addrParam(c)
	if !ok {
		return nil
	}
	bid, err := s.ledger.GetBid(c.Request().Context(), a)
	if err != nil {
		return s.readFailed(c, "bid", a, err)
	}
	return c.JSON(http.StatusOK, bid)
}

// getBalance handles GET /v1/balances/:addr. Unknown accounts have balance 0.
func (s *Server) getBalance(c echo.Context) error {
	a, ok := addrParam(c)
	if !ok {
		return nil
	}
	balance, err := s.ledger.Balance(c.Request().Context(), a)
	if err != nil {
		return s.readFailed(c, "balance", a, err)
	}
	return c.JSON(http.StatusOK, BalanceView{Address: a, Balance: balance})
}

// resolve handles GET /v1/resolve/:prefix.
func (s *Server) resolve(c echo.Context) error {
	a, err := resolver.ResolveSeason(c.Request().Context(), s.ledger, c.Param("prefix"))
	if err != nil {
		return s.resolveFailed(c, err)
	}
	return c.JSON(http.StatusOK, ResolveView{Address: a})
}
