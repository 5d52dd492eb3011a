package ledger

import (
	"fmt"

	"github.com/dyluth/mural/pkg/address"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so several
// ledgers can share one Redis server.
//
// Key pattern: mural:{instance}:{entity}:{address}

// SeasonKey returns the Redis key for a season record.
func SeasonKey(instance string, season address.Address) string {
	return fmt.Sprintf("mural:%s:season:%s", instance, season)
}

// SeasonRegionsKey returns the SET of funded region addresses for a season.
func SeasonRegionsKey(instance string, season address.Address) string {
	return fmt.Sprintf("mural:%s:season:%s:regions", instance, season)
}

// RegionKey returns the Redis key for a region record.
func RegionKey(instance string, region address.Address) string {
	return fmt.Sprintf("mural:%s:region:%s", instance, region)
}

// RegionBidsKey returns the ZSET of bid addresses for a region, scored by submission sequence.
func RegionBidsKey(instance string, region address.Address) string {
	return fmt.Sprintf("mural:%s:region:%s:bids", instance, region)
}

// ContributionKey returns the Redis key for a contribution record.
func ContributionKey(instance string, contribution address.Address) string {
	return fmt.Sprintf("mural:%s:contribution:%s", instance, contribution)
}

// BidKey returns the Redis key for a bid record.
func BidKey(instance string, bid address.Address) string {
	return fmt.Sprintf("mural:%s:bid:%s", instance, bid)
}

// BalanceKey returns the Redis key holding an account's balance in base units.
func BalanceKey(instance string, account address.Address) string {
	return fmt.Sprintf("mural:%s:balance:%s", instance, account)
}

// SeasonScanPattern returns the SCAN pattern matching season keys whose address starts with prefix.
func SeasonScanPattern(instance, prefix string) string {
	return fmt.Sprintf("mural:%s:season:%s*", instance, prefix)
}

// EventsChannel returns the Pub/Sub channel carrying committed ledger events.
func EventsChannel(instance string) string {
	return fmt.Sprintf("mural:%s:ledger_events", instance)
}

// NonceKey returns the key used to remember a consumed request nonce.
func NonceKey(instance, nonce string) string {
	return fmt.Sprintf("mural:%s:nonce:%s", instance, nonce)
}
