package ledger

// Bid ordering utilities
//
// The bids of a region are indexed in a ZSET where:
// - Key: mural:{instance}:region:{address}:bids
// - Members: bid addresses
// - Score: the bid's submission sequence (as float64)
//
// Sequences are assigned from Region.BidCount inside the submitting transaction,
// so they are dense, unique per region and reflect the ledger's commit order.
// Finalization uses them to break vote-weight ties in favour of the earliest bid.

// BidScore converts a bid sequence number to a ZSET score.
func BidScore(sequence uint32) float64 {
	return float64(sequence)
}

// SequenceFromScore converts a ZSET score back to a bid sequence number.
func SequenceFromScore(score float64) uint32 {
	return uint32(score)
}
