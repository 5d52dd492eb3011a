// Package social talks to the external content-graph service that holds
// comments, likes and profiles for seasons, regions and bids.
//
// The service is advisory. Every failure degrades to an empty result (nil
// node, empty list, zero count) and is logged; nothing here surfaces as a
// protocol error.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config configures the social client.
type Config struct {
	BaseURL   string
	APIKey    string
	Namespace string
	Timeout   time.Duration
}

// Recorder receives one call per social request. Implemented by metrics.Metrics.
type Recorder interface {
	RecordSocial(method string, degraded bool)
}

// Profile is a participant's social profile, keyed by wallet address.
type Profile struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	Username      string `json:"username"`
	Bio           string `json:"bio"`
	Image         string `json:"image,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
}

// Comment is a comment attached to a content node.
type Comment struct {
	ID        string   `json:"id"`
	ProfileID string   `json:"profileId"`
	ContentID string   `json:"contentId"`
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt,omitempty"`
	Profile   *Profile `json:"profile,omitempty"`
}

// SocialCounts are the aggregate counters the service keeps per node.
type SocialCounts struct {
	LikeCount    int `json:"likeCount"`
	CommentCount int `json:"commentCount"`
}

// ContentNode is the service's record for one piece of content, identified by
// a ledger address in hex.
type ContentNode struct {
	ID           string        `json:"id"`
	ProfileID    string        `json:"profileId,omitempty"`
	LikeCount    int           `json:"likeCount,omitempty"`
	SocialCounts *SocialCounts `json:"socialCounts,omitempty"`
}

// Likes returns the node's like count from whichever field the service filled.
func (n *ContentNode) Likes() int {
	if n == nil {
		return 0
	}
	if n.SocialCounts != nil {
		return n.SocialCounts.LikeCount
	}
	return n.LikeCount
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("social service returned %d: %s", e.Status, e.Body)
}

// Client is a degrading client for the social service.
type Client struct {
	bases     []string
	apiKey    string
	namespace string
	http      *http.Client
	log       *logrus.Entry
	recorder  Recorder
}

// New creates a client. A nil logger uses the logrus standard logger.
func New(cfg Config, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		bases:     baseURLs(cfg.BaseURL),
		apiKey:    cfg.APIKey,
		namespace: cfg.Namespace,
		http:      &http.Client{Timeout: timeout},
		log:       logger.WithField("component", "social"),
	}
}

// WithRecorder attaches a metrics recorder.
func (c *Client) WithRecorder(r Recorder) *Client {
	c.recorder = r
	return c
}

// baseURLs returns the configured base plus its /v1 <-> /api/v1 alternate.
// Deployments of the service disagree on the prefix; a 404 on one is retried on the other.
func baseURLs(primary string) []string {
	primary = strings.TrimRight(primary, "/")
	var alternate string
	if strings.Contains(primary, "/api/v1") {
		alternate = strings.Replace(primary, "/api/v1", "/v1", 1)
	} else {
		alternate = strings.Replace(primary, "/v1", "/api/v1", 1)
	}
	if alternate == primary {
		return []string{primary}
	}
	return []string{primary, alternate}
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	if query == nil {
		query = url.Values{}
	}
	if c.namespace != "" {
		query.Set("namespace", c.namespace)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	for i, base := range c.bases {
		target := base + endpoint
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("social request failed: %w", err)
		}
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("failed to read social response: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil || len(data) == 0 {
				return nil
			}
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode social response: %w", err)
			}
			return nil
		}

		lastErr = &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		if resp.StatusCode == http.StatusNotFound && i < len(c.bases)-1 {
			c.log.WithField("base_url", base).Debug("social endpoint not found, retrying alternate base URL")
			continue
		}
		return lastErr
	}
	return lastErr
}

// degrade logs a failed call and records it; it reports whether err was nil.
func (c *Client) degrade(method string, err error) bool {
	if c.recorder != nil {
		c.recorder.RecordSocial(method, err != nil)
	}
	if err == nil {
		return true
	}
	c.log.WithError(err).WithField("method", method).Warn("social service unavailable, degrading")
	return false
}

// FindOrCreate ensures a content node exists for contentID. Returns nil on failure.
func (c *Client) FindOrCreate(ctx context.Context, contentID, profileID string) *ContentNode {
	if contentID == "" {
		return nil
	}
	var node ContentNode
	err := c.do(ctx, http.MethodPost, "/contents/findOrCreate", nil, map[string]string{
		"id":        contentID,
		"profileId": profileID,
	}, &node)
	if !c.degrade("FindOrCreate", err) {
		return nil
	}
	return &node
}

// ListComments returns the comments on contentID, or an empty list on failure.
func (c *Client) ListComments(ctx context.Context, contentID string) []Comment {
	c.FindOrCreate(ctx, contentID, "")

	var result struct {
		Comments []Comment `json:"comments"`
	}
	err := c.do(ctx, http.MethodGet, "/comments", url.Values{"contentId": {contentID}}, nil, &result)
	if !c.degrade("ListComments", err) || result.Comments == nil {
		return []Comment{}
	}
	return result.Comments
}

// PostComment adds a comment to contentID. Returns nil on failure.
func (c *Client) PostComment(ctx context.Context, profileID, contentID, text string) *Comment {
	c.FindOrCreate(ctx, contentID, profileID)

	var comment Comment
	err := c.do(ctx, http.MethodPost, "/comments", nil, map[string]string{
		"profileId": profileID,
		"contentId": contentID,
		"text":      text,
	}, &comment)
	if !c.degrade("PostComment", err) {
		return nil
	}
	return &comment
}

// Like records profileID liking contentID and returns the resulting like
// count, or zero on failure.
func (c *Client) Like(ctx context.Context, profileID, contentID string) int {
	c.FindOrCreate(ctx, contentID, profileID)

	err := c.do(ctx, http.MethodPost, "/likes/"+url.PathEscape(contentID), nil, map[string]string{
		"profileId": profileID,
	}, nil)
	if !c.degrade("Like", err) {
		return 0
	}
	return c.Likes(ctx, contentID)
}

// Unlike removes profileID's like from contentID and returns the resulting
// like count, or zero on failure.
func (c *Client) Unlike(ctx context.Context, profileID, contentID string) int {
	err := c.do(ctx, http.MethodDelete, "/likes/"+url.PathEscape(contentID), nil, map[string]string{
		"profileId": profileID,
	}, nil)
	if !c.degrade("Unlike", err) {
		return 0
	}
	return c.Likes(ctx, contentID)
}

// Likes returns the like count of contentID, or zero on failure.
func (c *Client) Likes(ctx context.Context, contentID string) int {
	return c.FindOrCreate(ctx, contentID, "").Likes()
}

// FindOrCreateProfile returns the profile for a wallet, creating one with a
// default username if needed. Returns nil on failure.
func (c *Client) FindOrCreateProfile(ctx context.Context, wallet string) *Profile {
	if wallet == "" {
		return nil
	}
	username := "artist_" + wallet
	if len(wallet) > 8 {
		username = "artist_" + wallet[:8]
	}

	var profile Profile
	err := c.do(ctx, http.MethodPost, "/profiles/findOrCreate", nil, map[string]string{
		"walletAddress": wallet,
		"username":      username,
	}, &profile)
	if !c.degrade("FindOrCreateProfile", err) {
		return nil
	}
	return &profile
}
