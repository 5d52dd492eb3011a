package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/inspect"
	"github.com/dyluth/mural/internal/muralclient"
	"github.com/dyluth/mural/internal/printer"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/internal/resolver"
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
)

// commandContext is cancelled on Ctrl-C so long waits and streams stop cleanly.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newClient builds an API client; signed commands need the key loaded.
func newClient(signed bool) (*muralclient.Client, error) {
	cfg := muralclient.Config{BaseURL: apiURL, Timeout: requestTimeout}
	if signed {
		key, err := auth.LoadKey(keyPath)
		if err != nil {
			return nil, printer.Error(
				"no signing key",
				err.Error(),
				[]string{
					"Generate one with:\n     mural keygen",
					"Point at an existing key with --key or MURAL_KEY",
				},
			)
		}
		cfg.Key = key
	}
	c, err := muralclient.New(cfg)
	if err != nil {
		return nil, printer.Error("invalid API URL", err.Error(), []string{"Set --api or MURAL_API, e.g. http://localhost:8080"})
	}
	return c, nil
}

// submit signs and sends one operation and renders its outcome.
func submit(ctx context.Context, c *muralclient.Client, req protocol.Request) (protocol.Result, error) {
	r, err := c.Submit(ctx, req)
	if err != nil {
		return r, apiFailure(string(req.Op()), err)
	}
	return r, printer.Result(string(req.Op()), r)
}

// apiFailure renders a transport or API error.
func apiFailure(what string, err error) error {
	var apiErr *muralclient.APIError
	if errors.As(err, &apiErr) {
		return printer.ErrorWithContext(
			fmt.Sprintf("%s failed", what),
			apiErr.Message,
			map[string]string{"status": strconv.Itoa(apiErr.Status)},
			nil,
		)
	}
	return printer.Error(
		fmt.Sprintf("%s failed", what),
		err.Error(),
		[]string{fmt.Sprintf("Check that murald is reachable at %s (--api or MURAL_API)", apiURL)},
	)
}

// resolveSeason expands a season argument (full address or prefix).
func resolveSeason(ctx context.Context, c *muralclient.Client, arg string) (address.Address, error) {
	addr, err := c.Resolve(ctx, arg)
	if err == nil {
		return addr, nil
	}

	var apiErr *muralclient.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return address.Zero, printer.Error(
				"season not found",
				fmt.Sprintf("No season matches %q.", arg),
				nil,
			)
		case http.StatusConflict:
			ambiguous := &resolver.AmbiguousError{Prefix: arg, Matches: apiErr.Matches}
			return address.Zero, printer.Error(
				"ambiguous season prefix",
				resolver.FormatAmbiguousError(ambiguous),
				[]string{"Use a longer prefix or the full address"},
			)
		case http.StatusBadRequest:
			return address.Zero, printer.Error(
				"invalid season reference",
				apiErr.Message,
				[]string{fmt.Sprintf("Use the full address or a hex prefix of at least %d characters", resolver.MinPrefixLength)},
			)
		}
	}
	return address.Zero, apiFailure("resolve season", err)
}

// parseCell parses grid coordinates.
func parseCell(xs, ys string) (uint8, uint8, error) {
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errX != nil || errY != nil || !ledger.InGrid(x, y) {
		return 0, 0, printer.Error(
			"invalid region coordinates",
			fmt.Sprintf("(%s,%s) is not a cell of the %dx%d grid.", xs, ys, ledger.GridSize, ledger.GridSize),
			[]string{fmt.Sprintf("Coordinates run from 0 to %d", ledger.GridSize-1)},
		)
	}
	return uint8(x), uint8(y), nil
}

// parseAmount parses a token amount ("1.5") or raw base units ("1500u").
func parseAmount(s string) (uint64, error) {
	v, err := inspect.ParseBaseUnits(s)
	if err != nil {
		return 0, printer.Error(
			"invalid amount",
			err.Error(),
			[]string{fmt.Sprintf("Amounts take up to %d decimals (1.5) or raw base units with a u suffix (1500u)", inspect.Decimals)},
		)
	}
	if v == 0 {
		return 0, printer.Error("invalid amount", "Amount must be positive.", nil)
	}
	return v, nil
}

func parseOutput(s string) (inspect.OutputFormat, error) {
	f, err := inspect.ParseOutputFormat(s)
	if err != nil {
		return "", printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}
	return f, nil
}

// identity returns the address of the configured key.
func identity() (address.Address, error) {
	key, err := auth.LoadKey(keyPath)
	if err != nil {
		return address.Zero, printer.Error("no signing key", err.Error(), []string{"Generate one with:\n  mural keygen"})
	}
	return auth.Identity(key), nil
}
