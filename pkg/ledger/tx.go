package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/mural/pkg/address"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MaxTxAttempts bounds how often Update re-runs a transaction whose watched keys
// changed underneath it.
const MaxTxAttempts = 32

// Jittered exponential pause between transaction attempts.
const (
	txRetryInitial = 2 * time.Millisecond
	txRetryMax     = 64 * time.Millisecond
)

func newTxBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = txRetryInitial
	b.MaxInterval = txRetryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

var (
	// ErrContention is returned when a transaction keeps losing to concurrent writers.
	ErrContention = errors.New("ledger contention: transaction aborted repeatedly")

	// ErrInsufficientFunds is returned by Transfer when the source balance is too low.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrOverflow is returned when a credit would overflow a 64-bit balance.
	ErrOverflow = errors.New("balance overflow")
)

// Tx is a single atomic ledger mutation in progress.
// Reads WATCH their key; writes are buffered until the function passed to Update
// returns nil, then applied in one MULTI/EXEC.
type Tx struct {
	ctx      context.Context
	client   *Client
	rtx      *redis.Tx
	writes   []func(pipe redis.Pipeliner)
	balances map[address.Address]uint64
	dirty    map[address.Address]bool
	events   []*Event
}

// Update runs fn atomically. If fn returns an error nothing is written and the
// error is returned unchanged. If a watched key changes before commit, fn is run
// again against fresh state after a jittered backoff, up to MaxTxAttempts times.
func (c *Client) Update(ctx context.Context, fn func(tx *Tx) error) error {
	var wait backoff.BackOff
	for attempt := 0; attempt < MaxTxAttempts; attempt++ {
		if attempt > 0 {
			if wait == nil {
				wait = newTxBackOff()
			}
			timer := time.NewTimer(wait.NextBackOff())
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := c.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &Tx{
				ctx:      ctx,
				client:   c,
				rtx:      rtx,
				balances: make(map[address.Address]uint64),
				dirty:    make(map[address.Address]bool),
			}
			if err := fn(tx); err != nil {
				return err
			}
			return tx.commit()
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (tx *Tx) commit() error {
	if len(tx.writes) == 0 && len(tx.dirty) == 0 && len(tx.events) == 0 {
		return nil
	}

	payloads := make([][]byte, 0, len(tx.events))
	for _, ev := range tx.events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to marshal ledger event: %w", err)
		}
		payloads = append(payloads, data)
	}

	_, err := tx.rtx.TxPipelined(tx.ctx, func(pipe redis.Pipeliner) error {
		for _, write := range tx.writes {
			write(pipe)
		}
		for account := range tx.dirty {
			key := BalanceKey(tx.client.instanceName, account)
			pipe.Set(tx.ctx, key, strconv.FormatUint(tx.balances[account], 10), 0)
		}
		channel := EventsChannel(tx.client.instanceName)
		for _, payload := range payloads {
			pipe.Publish(tx.ctx, channel, payload)
		}
		return nil
	})
	return err
}

func (tx *Tx) watchAndRead(key string) (map[string]string, error) {
	if err := tx.rtx.Watch(tx.ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", key, err)
	}
	return tx.client.readHash(tx.ctx, tx.rtx, key)
}

// Season reads a season inside the transaction. Returns redis.Nil if absent.
func (tx *Tx) Season(season address.Address) (*Season, error) {
	hash, err := tx.watchAndRead(SeasonKey(tx.client.instanceName, season))
	if err != nil {
		return nil, err
	}
	return HashToSeason(hash)
}

// Region reads a region inside the transaction. Returns redis.Nil if unfunded.
func (tx *Tx) Region(region address.Address) (*Region, error) {
	hash, err := tx.watchAndRead(RegionKey(tx.client.instanceName, region))
	if err != nil {
		return nil, err
	}
	return HashToRegion(hash)
}

// Contribution reads a contribution inside the transaction. Returns redis.Nil if absent.
func (tx *Tx) Contribution(contribution address.Address) (*Contribution, error) {
	hash, err := tx.watchAndRead(ContributionKey(tx.client.instanceName, contribution))
	if err != nil {
		return nil, err
	}
	return HashToContribution(hash)
}

// Bid reads a bid inside the transaction. Returns redis.Nil if absent.
func (tx *Tx) Bid(bid address.Address) (*Bid, error) {
	hash, err := tx.watchAndRead(BidKey(tx.client.instanceName, bid))
	if err != nil {
		return nil, err
	}
	return HashToBid(hash)
}

// Bids reads every bid of a region in submission order, watching the bid index
// and each bid record.
func (tx *Tx) Bids(region address.Address) ([]*Bid, error) {
	indexKey := RegionBidsKey(tx.client.instanceName, region)
	if err := tx.rtx.Watch(tx.ctx, indexKey).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch bid index: %w", err)
	}
	members, err := tx.rtx.ZRange(tx.ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bid order: %w", err)
	}

	bids := make([]*Bid, 0, len(members))
	for _, member := range members {
		bidAddr, err := address.Parse(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt bid index entry %q: %w", member, err)
		}
		bid, err := tx.Bid(bidAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to read bid %s: %w", bidAddr.Short(), err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// Balance reads an account balance inside the transaction, including any
// transfers already buffered in this transaction.
func (tx *Tx) Balance(account address.Address) (uint64, error) {
	if v, ok := tx.balances[account]; ok {
		return v, nil
	}
	key := BalanceKey(tx.client.instanceName, account)
	if err := tx.rtx.Watch(tx.ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("failed to watch balance: %w", err)
	}
	v, err := readBalance(tx.ctx, tx.rtx, key)
	if err != nil {
		return 0, err
	}
	tx.balances[account] = v
	return v, nil
}

// Transfer moves amount from one account to another.
// Returns ErrInsufficientFunds or ErrOverflow without buffering anything.
func (tx *Tx) Transfer(from, to address.Address, amount uint64) error {
	if from == to {
		return fmt.Errorf("cannot transfer to the same account")
	}
	fromBal, err := tx.Balance(from)
	if err != nil {
		return err
	}
	toBal, err := tx.Balance(to)
	if err != nil {
		return err
	}
	if fromBal < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d", ErrInsufficientFunds, from.Short(), fromBal, amount)
	}
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s", ErrOverflow, to.Short())
	}

	tx.balances[from] = fromBal - amount
	tx.balances[to] = toBal + amount
	tx.dirty[from] = true
	tx.dirty[to] = true
	return nil
}

// Credit adds amount to an account from outside the ledger.
func (tx *Tx) Credit(account address.Address, amount uint64) error {
	bal, err := tx.Balance(account)
	if err != nil {
		return err
	}
	if bal > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s", ErrOverflow, account.Short())
	}
	tx.balances[account] = bal + amount
	tx.dirty[account] = true
	return nil
}

// PutSeason buffers a full season write after validating it.
func (tx *Tx) PutSeason(s *Season) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid season: %w", err)
	}
	key := SeasonKey(tx.client.instanceName, s.Address)
	hash := SeasonToHash(s)
	tx.writes = append(tx.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(tx.ctx, key, hash)
	})
	return nil
}

// PutRegion buffers a full region write and records it in the season's region index.
func (tx *Tx) PutRegion(r *Region) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid region: %w", err)
	}
	key := RegionKey(tx.client.instanceName, r.Address)
	indexKey := SeasonRegionsKey(tx.client.instanceName, r.Season)
	hash := RegionToHash(r)
	member := r.Address.String()
	tx.writes = append(tx.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(tx.ctx, key, hash)
		pipe.SAdd(tx.ctx, indexKey, member)
	})
	return nil
}

// PutContribution buffers a full contribution write.
func (tx *Tx) PutContribution(c *Contribution) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid contribution: %w", err)
	}
	key := ContributionKey(tx.client.instanceName, c.Address)
	hash := ContributionToHash(c)
	tx.writes = append(tx.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(tx.ctx, key, hash)
	})
	return nil
}

// PutBid buffers a full bid write and records it in the region's bid order.
func (tx *Tx) PutBid(b *Bid) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid bid: %w", err)
	}
	key := BidKey(tx.client.instanceName, b.Address)
	indexKey := RegionBidsKey(tx.client.instanceName, b.Region)
	hash := BidToHash(b)
	z := redis.Z{Score: BidScore(b.Sequence), Member: b.Address.String()}
	tx.writes = append(tx.writes, func(pipe redis.Pipeliner) {
		pipe.HSet(tx.ctx, key, hash)
		pipe.ZAdd(tx.ctx, indexKey, z)
	})
	return nil
}

// Emit queues an event to be published atomically with the transaction's writes.
// ID and CreatedAtMs are filled in when unset.
func (tx *Tx) Emit(ev *Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAtMs == 0 {
		ev.CreatedAtMs = time.Now().UnixMilli()
	}
	tx.events = append(tx.events, ev)
}
