// Package muralclient is the Go client of the murald HTTP API.
//
// A Client is built once from an explicit Config and holds no package-level
// state. Operations are submitted with Submit, which signs the request with the
// configured key; callers then re-read the records they care about by address.
package muralclient

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/mural/internal/api"
	"github.com/dyluth/mural/internal/auth"
	"github.com/dyluth/mural/internal/protocol"
	"github.com/dyluth/mural/internal/social"
	"github.com/dyluth/mural/internal/watch"
	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
	"github.com/dyluth/mural/pkg/phase"
)

// Config configures a Client.
type Config struct {
	BaseURL  string             // e.g. http://localhost:8080
	Key      ed25519.PrivateKey // signing key; only needed for Submit
	Timeout  time.Duration      // per-request HTTP timeout, default 10s
	TokenTTL time.Duration      // lifetime of signed requests, default auth.DefaultTTL
}

// Client talks to one murald instance.
type Client struct {
	base string
	key  ed25519.PrivateKey
	ttl  time.Duration
	http *http.Client
	now  func() time.Time
}

// APIError is a non-operation error response (bad address, missing record,
// rejected token).
type APIError struct {
	Status  int
	Message string
	Matches []address.Address
}

func (e *APIError) Error() string {
	return fmt.Sprintf("murald returned %d: %s", e.Status, e.Message)
}

// ErrNoKey is returned by Submit when the client has no signing key.
var ErrNoKey = errors.New("no signing key configured")

// New creates a client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL: %q", cfg.BaseURL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		key:  cfg.Key,
		ttl:  cfg.TokenTTL,
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}, nil
}

// WithClock overrides the time used to stamp signed requests. Used by tests.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Identity is the address of the configured key, or the zero address.
func (c *Client) Identity() address.Address {
	if c.key == nil {
		return address.Zero
	}
	return auth.Identity(c.key)
}

// IsExpected reports whether err is an ordinary protocol outcome (wrong phase,
// already voted, duplicate bid) to present rather than treat as a failure.
func IsExpected(err error) bool {
	return protocol.IsExpected(err)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Submit signs req and submits it. Protocol rejections come back inside the
// Result; the error is reserved for transport, authentication and server failures.
func (c *Client) Submit(ctx context.Context, req protocol.Request) (protocol.Result, error) {
	if c.key == nil {
		return protocol.Result{}, ErrNoKey
	}

	body, err := json.Marshal(req)
	if err != nil {
		return protocol.Result{}, fmt.Errorf("failed to encode %s request: %w", req.Op(), err)
	}
	token, err := auth.Sign(c.key, string(req.Op()), body, c.now(), c.ttl)
	if err != nil {
		return protocol.Result{}, err
	}

	status, data, err := c.roundTrip(ctx, http.MethodPost, "/v1/ops/"+string(req.Op()), body, http.Header{
		"Authorization": {"Bearer " + token},
	})
	if err != nil {
		return protocol.Result{}, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return protocol.Result{}, fmt.Errorf("failed to decode response (%d): %w", status, err)
	}
	if _, ok := probe["ok"]; !ok {
		return protocol.Result{}, decodeAPIError(status, data)
	}

	var result protocol.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return protocol.Result{}, fmt.Errorf("failed to decode result: %w", err)
	}
	return result, nil
}

// Season fetches a season by full address or unique prefix.
func (c *Client) Season(ctx context.Context, addrOrPrefix string) (*api.SeasonView, error) {
	var v api.SeasonView
	if err := c.getJSON(ctx, "/v1/seasons/"+url.PathEscape(addrOrPrefix), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Phase fetches the current phase of a season.
func (c *Client) Phase(ctx context.Context, season address.Address) (*api.PhaseView, error) {
	var v api.PhaseView
	if err := c.getJSON(ctx, "/v1/seasons/"+season.String()+"/phase", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Regions lists the funded regions of a season, by row then column.
func (c *Client) Regions(ctx context.Context, season address.Address) ([]*ledger.Region, error) {
	var v api.List[*ledger.Region]
	if err := c.getJSON(ctx, "/v1/seasons/"+season.String()+"/regions", &v); err != nil {
		return nil, err
	}
	return v.Items, nil
}

// Grid returns the season canvas indexed [y][x]; unfunded cells are nil.
func (c *Client) Grid(ctx context.Context, season address.Address) ([ledger.GridSize][ledger.GridSize]*ledger.Region, error) {
	var grid [ledger.GridSize][ledger.GridSize]*ledger.Region
	regions, err := c.Regions(ctx, season)
	if err != nil {
		return grid, err
	}
	for _, r := range regions {
		if ledger.InGrid(int(r.X), int(r.Y)) {
			grid[r.Y][r.X] = r
		}
	}
	return grid, nil
}

// Region fetches a region record.
func (c *Client) Region(ctx context.Context, region address.Address) (*ledger.Region, error) {
	var v ledger.Region
	if err := c.getJSON(ctx, "/v1/regions/"+region.String(), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Bids lists a region's bids in submission order.
func (c *Client) Bids(ctx context.Context, region address.Address) ([]*ledger.Bid, error) {
	var v api.List[*ledger.Bid]
	if err := c.getJSON(ctx, "/v1/regions/"+region.String()+"/bids", &v); err != nil {
		return nil, err
	}
	return v.Items, nil
}

// Contribution fetches a contribution record.
func (c *Client) Contribution(ctx context.Context, contribution address.Address) (*ledger.Contribution, error) {
	var v ledger.Contribution
	if err := c.getJSON(ctx, "/v1/contributions/"+contribution.String(), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Bid fetches a bid record.
func (c *Client) Bid(ctx context.Context, bid address.Address) (*ledger.Bid, error) {
	var v ledger.Bid
	if err := c.getJSON(ctx, "/v1/bids/"+bid.String(), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Balance returns an account balance in base units.
func (c *Client) Balance(ctx context.Context, account address.Address) (uint64, error) {
	var v api.BalanceView
	if err := c.getJSON(ctx, "/v1/balances/"+account.String(), &v); err != nil {
		return 0, err
	}
	return v.Balance, nil
}

// Resolve expands a season address prefix.
func (c *Client) Resolve(ctx context.Context, prefix string) (address.Address, error) {
	var v api.ResolveView
	if err := c.getJSON(ctx, "/v1/resolve/"+url.PathEscape(prefix), &v); err != nil {
		return address.Zero, err
	}
	return v.Address, nil
}

// Credit seeds an account through the admin faucet and returns the new balance.
func (c *Client) Credit(ctx context.Context, adminToken string, account address.Address, amount uint64) (uint64, error) {
	var v api.BalanceView
	err := c.postJSON(ctx, "/v1/admin/credit", api.CreditRequest{Account: account, Amount: amount}, &v, http.Header{
		api.HeaderAdminToken: {adminToken},
	})
	if err != nil {
		return 0, err
	}
	return v.Balance, nil
}

// Comments lists the comments on a ledger record.
func (c *Client) Comments(ctx context.Context, contentID string) ([]social.Comment, error) {
	var v api.List[social.Comment]
	if err := c.getJSON(ctx, "/v1/social/comments?content_id="+url.QueryEscape(contentID), &v); err != nil {
		return nil, err
	}
	return v.Items, nil
}

// PostComment comments on a ledger record. A nil comment means the social
// service did not store it.
func (c *Client) PostComment(ctx context.Context, profileID, contentID, text string) (*social.Comment, error) {
	var v *social.Comment
	err := c.postJSON(ctx, "/v1/social/comments", api.CommentRequest{ProfileID: profileID, ContentID: contentID, Text: text}, &v, nil)
	return v, err
}

// Like likes (or with like=false, unlikes) a ledger record and returns its like
// count afterwards. An unavailable social service yields zero.
func (c *Client) Like(ctx context.Context, profileID, contentID string, like bool) (int, error) {
	method := http.MethodPost
	if !like {
		method = http.MethodDelete
	}
	body, _ := json.Marshal(api.LikeRequest{ProfileID: profileID})
	status, data, err := c.roundTrip(ctx, method, "/v1/social/likes/"+url.PathEscape(contentID), body, nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, decodeAPIError(status, data)
	}
	var v api.LikesView
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return v.Likes, nil
}

// Likes returns the like count of a ledger record.
func (c *Client) Likes(ctx context.Context, contentID string) (int, error) {
	var v api.LikesView
	if err := c.getJSON(ctx, "/v1/social/likes/"+url.PathEscape(contentID), &v); err != nil {
		return 0, err
	}
	return v.Likes, nil
}

// Profile finds or creates the social profile of a wallet.
func (c *Client) Profile(ctx context.Context, wallet string) (*social.Profile, error) {
	var v *social.Profile
	err := c.postJSON(ctx, "/v1/social/profiles", api.ProfileRequest{Wallet: wallet}, &v, nil)
	return v, err
}

// WaitForPhase polls until the season reaches at least want.
func (c *Client) WaitForPhase(ctx context.Context, season address.Address, want phase.Phase, interval, timeout time.Duration) error {
	return watch.PollUntil(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		v, err := c.Phase(ctx, season)
		if err != nil {
			return false, err
		}
		return v.Phase >= want, nil
	})
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	status, data, err := c.roundTrip(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return decodeAPIError(status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}, header http.Header) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	status, data, err := c.roundTrip(ctx, http.MethodPost, path, body, header)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return decodeAPIError(status, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, header http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request to murald failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func decodeAPIError(status int, data []byte) error {
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(data))}
	}
	return &APIError{Status: status, Message: body.Error, Matches: body.Matches}
}
