// Package resolver expands short season address prefixes, as shown by the CLI,
// into full addresses.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dyluth/mural/pkg/address"
	"github.com/dyluth/mural/pkg/ledger"
)

// MinPrefixLength is the minimum required length for short address prefixes.
const MinPrefixLength = 6

// SeasonIndex is the subset of the ledger client the resolver needs.
type SeasonIndex interface {
	GetSeason(ctx context.Context, season address.Address) (*ledger.Season, error)
	ScanSeasons(ctx context.Context, prefix string) ([]address.Address, error)
}

// ResolveSeason resolves a hex prefix to a full season address.
// Returns the address if exactly one season matches.
//
// A full 64-character address is checked for existence and returned as-is.
// Shorter input must be at least MinPrefixLength hex characters.
func ResolveSeason(ctx context.Context, index SeasonIndex, prefix string) (address.Address, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	if len(prefix) == address.Size*2 {
		a, err := address.Parse(prefix)
		if err != nil {
			return address.Zero, err
		}
		if _, err := index.GetSeason(ctx, a); err != nil {
			if ledger.IsNotFound(err) {
				return address.Zero, &NotFoundError{Prefix: prefix}
			}
			return address.Zero, fmt.Errorf("failed to verify season existence: %w", err)
		}
		return a, nil
	}

	if len(prefix) < MinPrefixLength {
		return address.Zero, fmt.Errorf("address prefix must be at least %d characters (got %d)", MinPrefixLength, len(prefix))
	}
	if strings.Trim(prefix, "0123456789abcdef") != "" {
		return address.Zero, fmt.Errorf("address prefix must be hexadecimal: %q", prefix)
	}

	matches, err := index.ScanSeasons(ctx, prefix)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to search for season: %w", err)
	}

	switch len(matches) {
	case 0:
		return address.Zero, &NotFoundError{Prefix: prefix}
	case 1:
		return matches[0], nil
	default:
		return address.Zero, &AmbiguousError{Prefix: prefix, Matches: matches}
	}
}

// NotFoundError indicates no season matched the prefix.
type NotFoundError struct {
	Prefix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no seasons found matching '%s'", e.Prefix)
}

// AmbiguousError indicates multiple seasons matched the prefix.
type AmbiguousError struct {
	Prefix  string
	Matches []address.Address
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous prefix '%s' matches %d seasons", e.Prefix, len(e.Matches))
}

// FormatAmbiguousError lists the matching addresses (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous prefix '%s' matches %d seasons:\n", err.Prefix, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}
	for i := 0; i < displayCount; i++ {
		fmt.Fprintf(&b, "  %s\n", err.Matches[i])
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the season.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
