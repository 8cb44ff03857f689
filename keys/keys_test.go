package keys

import (
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreasbros/frost-btc-state-machine/errs"
)

func TestGenerateRejectsInvalidParameters(t *testing.T) {
	_, _, err := Generate(0, 3, rand.Reader)
	require.ErrorIs(t, err, errs.ErrInvalidParameters)

	_, _, err = Generate(4, 3, rand.Reader)
	require.ErrorIs(t, err, errs.ErrInvalidParameters)
}

func TestGenerateProducesConsistentShares(t *testing.T) {
	public, packages, err := Generate(3, 5, rand.Reader)
	require.NoError(t, err)
	require.Len(t, packages, 5)
	require.Equal(t, 3, public.Threshold)
	require.Equal(t, 5, public.Total)

	require.NoError(t, VerifyConsistency(packages))
}

// TestRoundTripSerialization confirms deserialize(serialize(key_package))
// equals the original, the property the spec calls out explicitly.
func TestRoundTripSerialization(t *testing.T) {
	public, packages, err := Generate(2, 3, rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "group.json")
	require.NoError(t, Save(path, packages))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(packages))

	for id, pkg := range packages {
		got, ok := loaded[id]
		require.True(t, ok, "participant %d missing after round trip", id)
		require.True(t, pkg.SigningShare.Equals(got.SigningShare))
		require.True(t, pkg.Public.GroupPublicKey.IsEqual(got.Public.GroupPublicKey))
	}

	require.Equal(t, public.Threshold, loaded[1].Public.Threshold)
	require.Equal(t, public.Total, loaded[1].Public.Total)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, writeRaw(path, []byte(`{"version":1,"public_key_package":"zz","shares":{}}`)))

	_, err := Load(path)
	require.ErrorIs(t, err, errs.ErrCorrupt)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "future.json")
	require.NoError(t, writeRaw(path, []byte(`{"version":99,"public_key_package":"","shares":{}}`)))

	_, err := Load(path)
	require.ErrorIs(t, err, errs.ErrCorrupt)
}

func writeRaw(path string, data []byte) error {
	return atomicWrite(path, data)
}
