package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dyluth/mural/pkg/address"
	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis access to the ledger.
// All keys and channels are namespaced with the instance name.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a ledger client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// InstanceName returns the namespace this client operates in.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// RedisClient exposes the underlying connection for components sharing it
// (request nonce tracking).
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// GetSeason retrieves a season by address.
// Returns (nil, redis.Nil) if the season doesn't exist. Use IsNotFound() to check.
func (c *Client) GetSeason(ctx context.Context, season address.Address) (*Season, error) {
	hash, err := c.readHash(ctx, c.rdb, SeasonKey(c.instanceName, season))
	if err != nil {
		return nil, err
	}
	s, err := HashToSeason(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize season: %w", err)
	}
	return s, nil
}

// GetRegion retrieves a region by address.
// A missing region is the canonical unfunded state and returns redis.Nil.
func (c *Client) GetRegion(ctx context.Context, region address.Address) (*Region, error) {
	hash, err := c.readHash(ctx, c.rdb, RegionKey(c.instanceName, region))
	if err != nil {
		return nil, err
	}
	r, err := HashToRegion(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize region: %w", err)
	}
	return r, nil
}

// GetContribution retrieves a contribution by address.
func (c *Client) GetContribution(ctx context.Context, contribution address.Address) (*Contribution, error) {
	hash, err := c.readHash(ctx, c.rdb, ContributionKey(c.instanceName, contribution))
	if err != nil {
		return nil, err
	}
	con, err := HashToContribution(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize contribution: %w", err)
	}
	return con, nil
}

// GetBid retrieves a bid by address.
func (c *Client) GetBid(ctx context.Context, bid address.Address) (*Bid, error) {
	hash, err := c.readHash(ctx, c.rdb, BidKey(c.instanceName, bid))
	if err != nil {
		return nil, err
	}
	b, err := HashToBid(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize bid: %w", err)
	}
	return b, nil
}

// SeasonExists checks whether a season exists without fetching it.
func (c *Client) SeasonExists(ctx context.Context, season address.Address) (bool, error) {
	exists, err := c.rdb.Exists(ctx, SeasonKey(c.instanceName, season)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check season existence: %w", err)
	}
	return exists > 0, nil
}

// ListBids returns every bid for a region in submission order.
// Returns an empty slice if the region has no bids.
func (c *Client) ListBids(ctx context.Context, region address.Address) ([]*Bid, error) {
	entries, err := c.rdb.ZRangeWithScores(ctx, RegionBidsKey(c.instanceName, region), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bid order: %w", err)
	}

	bids := make([]*Bid, 0, len(entries))
	for _, z := range entries {
		member, _ := z.Member.(string)
		bidAddr, err := address.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt bid index entry %q: %w", member, err)
		}
		bid, err := c.GetBid(ctx, bidAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read bid %s: %w", bidAddr.Short(), err)
		}
		if seq := SequenceFromScore(z.Score); seq != bid.Sequence {
			return nil, fmt.Errorf("bid %s indexed at sequence %d but records %d", bidAddr.Short(), seq, bid.Sequence)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// ListRegions returns the funded regions of a season ordered by row, then column.
func (c *Client) ListRegions(ctx context.Context, season address.Address) ([]*Region, error) {
	members, err := c.rdb.SMembers(ctx, SeasonRegionsKey(c.instanceName, season)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read season regions: %w", err)
	}

	regions := make([]*Region, 0, len(members))
	for _, member := range members {
		regionAddr, err := address.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt region index entry %q: %w", member, err)
		}
		region, err := c.GetRegion(ctx, regionAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read region %s: %w", regionAddr.Short(), err)
		}
		regions = append(regions, region)
	}

	sort.Slice(regions, func(i, j int) bool {
		if regions[i].Y != regions[j].Y {
			return regions[i].Y < regions[j].Y
		}
		return regions[i].X < regions[j].X
	})
	return regions, nil
}

// Balance returns an account's balance in base units. Unknown accounts hold zero.
func (c *Client) Balance(ctx context.Context, account address.Address) (uint64, error) {
	return readBalance(ctx, c.rdb, BalanceKey(c.instanceName, account))
}

// Credit adds amount to an account outside of any protocol operation.
// It stands in for the external wallet system that funds participants.
func (c *Client) Credit(ctx context.Context, account address.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("credit amount must be positive")
	}
	return c.Update(ctx, func(tx *Tx) error {
		if err := tx.Credit(account, amount); err != nil {
			return err
		}
		tx.Emit(&Event{
			Kind:    EventAccountCredited,
			Subject: account,
			Actor:   account,
			Amount:  amount,
		})
		return nil
	})
}

// ScanSeasons returns the addresses of seasons whose hex address starts with prefix.
// Uses SCAN so large ledgers are not blocked.
func (c *Client) ScanSeasons(ctx context.Context, prefix string) ([]address.Address, error) {
	keyPrefix := fmt.Sprintf("mural:%s:season:", c.instanceName)
	iter := c.rdb.Scan(ctx, 0, SeasonScanPattern(c.instanceName, strings.ToLower(prefix)), 0).Iterator()

	var matches []address.Address
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), keyPrefix)
		if strings.Contains(rest, ":") {
			continue // index keys such as season:{addr}:regions
		}
		a, err := address.Parse(rest)
		if err != nil {
			continue
		}
		matches = append(matches, a)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan seasons: %w", err)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].String() < matches[j].String() })
	return matches, nil
}

func (c *Client) readHash(ctx context.Context, r redis.Cmdable, key string) (map[string]string, error) {
	hash, err := r.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}
	// HGetAll returns an empty map for missing keys
	if len(hash) == 0 {
		return nil, redis.Nil
	}
	return hash, nil
}

func readBalance(ctx context.Context, r redis.Cmdable, key string) (uint64, error) {
	raw, err := r.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt balance at %s: %w", key, err)
	}
	return v, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
