package address

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(b byte) Address {
	var a Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestDerive_Deterministic(t *testing.T) {
	alice := testIdentity(0xa1)
	season := Season(alice, "Spring Mural")

	for x := uint8(0); x < 8; x++ {
		for y := uint8(0); y < 8; y++ {
			first := Region(season, x, y)
			second := Region(season, x, y)
			assert.Equal(t, first, second, "region (%d,%d) must derive identically", x, y)
		}
	}
}

func TestDerive_DistinctInputs(t *testing.T) {
	alice := testIdentity(0xa1)
	bob := testIdentity(0xb0)
	season := Season(alice, "Spring Mural")

	seen := make(map[Address]string)
	record := func(name string, a Address) {
		t.Helper()
		if prev, ok := seen[a]; ok {
			t.Fatalf("collision between %s and %s", prev, name)
		}
		seen[a] = name
	}

	record("season alice", season)
	record("season bob", Season(bob, "Spring Mural"))
	record("season alice other title", Season(alice, "Autumn Mural"))
	for x := uint8(0); x < 8; x++ {
		for y := uint8(0); y < 8; y++ {
			record("region", Region(season, x, y))
			record("vault", Vault(season, x, y))
			record("contribution alice", Contribution(season, x, y, alice))
			record("contribution bob", Contribution(season, x, y, bob))
		}
	}
	region := Region(season, 0, 0)
	record("bid alice", Bid(region, alice))
	record("bid bob", Bid(region, bob))
}

func TestDerive_ComponentBoundaries(t *testing.T) {
	assert.NotEqual(t,
		Derive("t", []byte("ab"), []byte("c")),
		Derive("t", []byte("a"), []byte("bc")),
	)
	assert.NotEqual(t, Derive("region"), Derive("regio", []byte("n")))
}

func TestRegionAndVaultDiffer(t *testing.T) {
	season := Season(testIdentity(1), "s")
	assert.NotEqual(t, Region(season, 3, 4), Vault(season, 3, 4))
	assert.NotEqual(t, Region(season, 3, 4), Region(season, 4, 3))
}

func TestParse(t *testing.T) {
	a := Season(testIdentity(7), "title")

	t.Run("round trips hex", func(t *testing.T) {
		parsed, err := Parse(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	})

	t.Run("accepts 0x prefix", func(t *testing.T) {
		parsed, err := Parse("0x" + a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := Parse("abcd")
		assert.Error(t, err)
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := Parse(string(make([]byte, 64)))
		assert.Error(t, err)
	})
}

func TestJSONEncoding(t *testing.T) {
	a := Region(Season(testIdentity(2), "x"), 1, 2)

	data, err := json.Marshal(map[string]Address{"addr": a})
	require.NoError(t, err)
	assert.Contains(t, string(data), a.String())

	var decoded map[string]Address
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, a, decoded["addr"])
}

func TestOptional(t *testing.T) {
	assert.Equal(t, "", Optional(nil))

	a := testIdentity(9)
	encoded := Optional(&a)
	decoded, err := ParseOptional(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, a, *decoded)

	none, err := ParseOptional("")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestShortAndZero(t *testing.T) {
	a := testIdentity(0xff)
	assert.Equal(t, "ffffffff", a.Short())
	assert.False(t, a.IsZero())
	assert.True(t, Zero.IsZero())
}
