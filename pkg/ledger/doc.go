// Package ledger is the persisted entity store of the mural protocol.
//
// # Overview
//
// The ledger holds four record kinds in Redis, each keyed by its deterministic
// address (see package address):
//
// Seasons are canvases created by an authority. They carry the funding and voting
// deadlines, the minimum first contribution per region, and running totals.
//
// Regions are the cells of the fixed 8x8 grid. A region record exists only once
// somebody has funded it; a missing record is the canonical "unfunded" state.
//
// Contributions track one funder's cumulative stake in one region and whether
// (and for which bid) that funder has voted.
//
// Bids are artist proposals for a region, with a running vote count and vote
// weight. Each bid has a 1-based submission sequence used for tie-breaking.
//
// Account balances, for participants and for region vaults, are plain integer
// counters next to the records.
//
// # Atomicity
//
// All protocol mutations go through Client.Update, which runs a function against a
// Tx. Reads through the Tx WATCH their key; writes are buffered and committed in a
// single MULTI/EXEC together with the operation's event. If another writer touches
// a watched key first, EXEC aborts and the function is re-run against fresh state,
// so concurrent increments are never lost to last-write-wins.
//
// # Redis Schema
//
// All keys follow the pattern: mural:{instance}:{entity}:{address}
//
// Seasons: mural:{instance}:season:{address}
// Season region index: mural:{instance}:season:{address}:regions
// Regions: mural:{instance}:region:{address}
// Region bid order: mural:{instance}:region:{address}:bids
// Contributions: mural:{instance}:contribution:{address}
// Bids: mural:{instance}:bid:{address}
// Balances: mural:{instance}:balance:{address}
//
// Pub/Sub channel: mural:{instance}:ledger_events
package ledger
