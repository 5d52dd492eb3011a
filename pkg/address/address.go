// Package address derives deterministic identifiers for every mural ledger entity.
//
// An address is the SHA3-256 digest of a namespace tag followed by an ordered list
// of seed byte strings. The seed order is fixed per entity kind:
//
//	season        tag, authority, title
//	region        tag, season, x, y
//	region_vault  tag, season, x, y
//	contribution  tag, season, x, y, contributor
//	bid           tag, region, artist
//
// Identical inputs always produce the identical address, so no lookup table is
// needed to find a record: callers recompute the address from its logical key.
// Coordinates are encoded as a single byte each, which caps the grid at 256x256.
package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Size is the length of an address in bytes.
const Size = 32

// Namespace tags mixed into every derivation.
const (
	TagSeason       = "season"
	TagRegion       = "region"
	TagVault        = "region_vault"
	TagContribution = "contribution"
	TagBid          = "bid"
)

// domain separates mural addresses from any other SHA3 use of the same seeds.
const domain = "mural/address/v1"

// Address identifies a ledger record or a participant account.
// Participant identities are the raw 32-byte ed25519 public key of the caller.
type Address [Size]byte

// Zero is the empty address. It never results from Derive.
var Zero Address

// Derive hashes tag and seeds into an Address.
// Every component is length-prefixed so that ("ab","c") and ("a","bc") differ.
func Derive(tag string, seeds ...[]byte) Address {
	h := sha3.New256()
	writeComponent(h, []byte(domain))
	writeComponent(h, []byte(tag))
	for _, seed := range seeds {
		writeComponent(h, seed)
	}

	var out Address
	copy(out[:], h.Sum(nil))
	return out
}

type byteWriter interface {
	Write(p []byte) (int, error)
}

func writeComponent(w byteWriter, b []byte) {
	n := len(b)
	// sha3 hashes never return write errors
	_, _ = w.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	_, _ = w.Write(b)
}

// Season returns the address of the season created by authority with title.
func Season(authority Address, title string) Address {
	return Derive(TagSeason, authority[:], []byte(title))
}

// Region returns the address of cell (x, y) of season.
func Region(season Address, x, y uint8) Address {
	return Derive(TagRegion, season[:], []byte{x}, []byte{y})
}

// Vault returns the custody account holding escrowed funds for cell (x, y).
func Vault(season Address, x, y uint8) Address {
	return Derive(TagVault, season[:], []byte{x}, []byte{y})
}

// Contribution returns the address of contributor's stake in cell (x, y).
func Contribution(season Address, x, y uint8, contributor Address) Address {
	return Derive(TagContribution, season[:], []byte{x}, []byte{y}, contributor[:])
}

// Bid returns the address of artist's proposal for region.
func Bid(region, artist Address) Address {
	return Derive(TagBid, region[:], artist[:])
}

// String returns the lowercase hex form of the address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// Short returns the first 8 hex characters, for compact display.
func (a Address) Short() string {
	return a.String()[:8]
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a == Zero
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, a[:])
	return b
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as hex in JSON.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a 64-character hex address. A leading "0x" is accepted.
func Parse(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != Size*2 {
		return Zero, fmt.Errorf("invalid address length: expected %d hex chars, got %d", Size*2, len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Zero, fmt.Errorf("invalid address: %w", err)
	}

	var out Address
	copy(out[:], raw)
	return out, nil
}

// MustParse is like Parse but panics on error. Intended for tests and constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies a 32-byte slice into an Address.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("invalid address length: expected %d bytes, got %d", Size, len(b))
	}
	var out Address
	copy(out[:], b)
	return out, nil
}

// Optional encodes a nullable address reference as stored in ledger hashes:
// the empty string for nil, hex otherwise.
func Optional(a *Address) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// ParseOptional is the inverse of Optional.
func ParseOptional(s string) (*Address, error) {
	if s == "" {
		return nil, nil
	}
	a, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
