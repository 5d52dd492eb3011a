package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/mural/pkg/address"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func identity(b byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func testSeason(authority address.Address, title string) *Season {
	return &Season{
		Address:             address.Season(authority, title),
		Authority:           authority,
		Title:               title,
		Description:         "a shared wall",
		FundingEndTs:        1_700_001_000,
		VotingEndTs:         1_700_002_000,
		MinFundingPerRegion: 100,
		CreatedAtMs:         1_700_000_000_000,
	}
}

func testRegion(season address.Address, x, y uint8) *Region {
	return &Region{
		Address:          address.Region(season, x, y),
		Season:           season,
		X:                x,
		Y:                y,
		Vault:            address.Vault(season, x, y),
		TotalFunded:      150,
		ContributorCount: 1,
	}
}

func TestNewClient(t *testing.T) {
	t.Run("creates client successfully", func(t *testing.T) {
		client, _ := setupTestClient(t)
		assert.NotNil(t, client)
		assert.Equal(t, "test-instance", client.InstanceName())
	})

	t.Run("rejects empty instance name", func(t *testing.T) {
		_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "instance name cannot be empty")
	})
}

func TestPing(t *testing.T) {
	client, _ := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestSeasonRoundTrip(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	season := testSeason(identity(1), "Spring")

	err := client.Update(ctx, func(tx *Tx) error {
		return tx.PutSeason(season)
	})
	require.NoError(t, err)

	assert.True(t, mr.Exists(SeasonKey("test-instance", season.Address)))

	got, err := client.GetSeason(ctx, season.Address)
	require.NoError(t, err)
	assert.Equal(t, season, got)

	exists, err := client.SeasonExists(ctx, season.Address)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetMissingRecords(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	missing := identity(0x42)

	_, err := client.GetSeason(ctx, missing)
	assert.True(t, IsNotFound(err))

	_, err = client.GetRegion(ctx, missing)
	assert.True(t, IsNotFound(err))

	_, err = client.GetContribution(ctx, missing)
	assert.True(t, IsNotFound(err))

	_, err = client.GetBid(ctx, missing)
	assert.True(t, IsNotFound(err))

	exists, err := client.SeasonExists(ctx, missing)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdate_ErrorWritesNothing(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	season := testSeason(identity(1), "Spring")
	boom := errors.New("precondition failed")

	err := client.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSeason(season); err != nil {
			return err
		}
		if err := tx.Credit(identity(2), 10); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, mr.Keys())
}

func TestUpdate_RejectsInvalidRecords(t *testing.T) {
	client, _ := setupTestClient(t)
	season := testSeason(identity(1), "Spring")
	season.VotingEndTs = season.FundingEndTs

	err := client.Update(context.Background(), func(tx *Tx) error {
		return tx.PutSeason(season)
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid season")
}

func TestListRegions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	season := testSeason(identity(1), "Spring")

	err := client.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSeason(season); err != nil {
			return err
		}
		for _, xy := range [][2]uint8{{3, 1}, {0, 0}, {1, 1}, {7, 0}} {
			if err := tx.PutRegion(testRegion(season.Address, xy[0], xy[1])); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	regions, err := client.ListRegions(ctx, season.Address)
	require.NoError(t, err)
	require.Len(t, regions, 4)

	var coords [][2]uint8
	for _, r := range regions {
		coords = append(coords, [2]uint8{r.X, r.Y})
	}
	assert.Equal(t, [][2]uint8{{0, 0}, {7, 0}, {1, 1}, {3, 1}}, coords)
}

func TestListBids_SubmissionOrder(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	season := testSeason(identity(1), "Spring")
	region := testRegion(season.Address, 0, 0)

	artists := []address.Address{identity(0xc3), identity(0xa1), identity(0xb2)}
	err := client.Update(ctx, func(tx *Tx) error {
		for i, artist := range artists {
			bid := &Bid{
				Address:         address.Bid(region.Address, artist),
				Region:          region.Address,
				Artist:          artist,
				SketchURI:       "ipfs://sketch",
				RequestedAmount: 100,
				Sequence:        uint32(i + 1),
			}
			if err := tx.PutBid(bid); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	bids, err := client.ListBids(ctx, region.Address)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	for i, bid := range bids {
		assert.Equal(t, artists[i], bid.Artist)
		assert.Equal(t, uint32(i+1), bid.Sequence)
	}

	empty, err := client.ListBids(ctx, identity(0x99))
	require.NoError(t, err)
	assert.Empty(t, empty)

	t.Run("index disagrees with record", func(t *testing.T) {
		bidAddr := address.Bid(region.Address, artists[0])
		_, err := mr.ZAdd(RegionBidsKey("test-instance", region.Address), 9, bidAddr.String())
		require.NoError(t, err)

		_, err = client.ListBids(ctx, region.Address)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "indexed at sequence 9 but records 1")
	})
}

func TestBalancesAndTransfer(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	alice, vault := identity(0xa1), identity(0x0f)

	bal, err := client.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, bal)

	require.NoError(t, client.Credit(ctx, alice, 500))

	t.Run("moves value", func(t *testing.T) {
		err := client.Update(ctx, func(tx *Tx) error {
			return tx.Transfer(alice, vault, 200)
		})
		require.NoError(t, err)

		a, err := client.Balance(ctx, alice)
		require.NoError(t, err)
		v, err := client.Balance(ctx, vault)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), a)
		assert.Equal(t, uint64(200), v)
	})

	t.Run("rejects overdraft", func(t *testing.T) {
		err := client.Update(ctx, func(tx *Tx) error {
			return tx.Transfer(alice, vault, 301)
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		a, err := client.Balance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), a)
	})

	t.Run("sees buffered transfers", func(t *testing.T) {
		err := client.Update(ctx, func(tx *Tx) error {
			if err := tx.Transfer(alice, vault, 300); err != nil {
				return err
			}
			return tx.Transfer(alice, vault, 1)
		})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("rejects zero credit", func(t *testing.T) {
		assert.Error(t, client.Credit(ctx, alice, 0))
	})
}

func TestUpdate_ConcurrentIncrementsNotLost(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	account := identity(0x77)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Credit(ctx, account, 5)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	bal, err := client.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(workers*5), bal)
}

func TestUpdate_ContentionExhaustsAttempts(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	account := identity(0x78)

	writer := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { writer.Close() })

	attempts := 0
	err := client.Update(ctx, func(tx *Tx) error {
		attempts++
		if _, err := tx.Balance(account); err != nil {
			return err
		}
		// Another writer touches the watched balance before every commit.
		require.NoError(t, writer.Set(ctx, BalanceKey("test-instance", account), attempts, 0).Err())
		return tx.Credit(account, 1)
	})
	assert.ErrorIs(t, err, ErrContention)
	assert.Equal(t, MaxTxAttempts, attempts)

	bal, err := client.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(MaxTxAttempts), bal, "only the outside writes landed")
}

func TestUpdate_RetrySucceedsAfterConflict(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()
	account := identity(0x79)

	writer := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { writer.Close() })

	attempts := 0
	err := client.Update(ctx, func(tx *Tx) error {
		attempts++
		if _, err := tx.Balance(account); err != nil {
			return err
		}
		if attempts < 3 {
			require.NoError(t, writer.IncrBy(ctx, BalanceKey("test-instance", account), 100).Err())
		}
		return tx.Credit(account, 5)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	bal, err := client.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(205), bal)
}

func TestUpdate_CancelledWhileBackingOff(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	account := identity(0x7a)

	writer := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { writer.Close() })

	attempts := 0
	err := client.Update(ctx, func(tx *Tx) error {
		attempts++
		if _, err := tx.Balance(account); err != nil {
			return err
		}
		require.NoError(t, writer.Set(context.Background(), BalanceKey("test-instance", account), 1, 0).Err())
		if attempts == 2 {
			cancel()
		}
		return tx.Credit(account, 1)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestScanSeasons(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()
	s1 := testSeason(identity(1), "Spring")
	s2 := testSeason(identity(1), "Autumn")

	err := client.Update(ctx, func(tx *Tx) error {
		if err := tx.PutSeason(s1); err != nil {
			return err
		}
		if err := tx.PutRegion(testRegion(s1.Address, 0, 0)); err != nil {
			return err
		}
		return tx.PutSeason(s2)
	})
	require.NoError(t, err)

	all, err := client.ScanSeasons(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []address.Address{s1.Address, s2.Address}, all)

	one, err := client.ScanSeasons(ctx, s1.Address.String()[:10])
	require.NoError(t, err)
	assert.Equal(t, []address.Address{s1.Address}, one)
}

func TestSubscribeEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	account := identity(0x10)
	require.NoError(t, client.Credit(ctx, account, 42))

	select {
	case ev := <-sub.Events():
		require.NotNil(t, ev)
		assert.Equal(t, EventAccountCredited, ev.Kind)
		assert.Equal(t, account, ev.Subject)
		assert.Equal(t, uint64(42), ev.Amount)
		assert.NotEmpty(t, ev.ID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for ledger event")
	}

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}
