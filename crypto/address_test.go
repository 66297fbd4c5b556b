package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	addr := AddressFromName(DAOPrefix, "alice")
	encoded := addr.String()
	require.Contains(t, encoded, "dao1")

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.True(t, addr.Equal(decoded))
	require.Equal(t, DAOPrefix, decoded.Prefix())
}

func TestAddressFromNameIsDeterministic(t *testing.T) {
	require.True(t, AddressFromName(DAOPrefix, "bob").Equal(AddressFromName(DAOPrefix, " bob ")))
	require.False(t, AddressFromName(DAOPrefix, "bob").Equal(AddressFromName(ContractPrefix, "bob")))
	require.False(t, AddressFromName(DAOPrefix, "bob").Equal(AddressFromName(DAOPrefix, "carol")))
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	_, err := DecodeAddress("")
	require.Error(t, err)
	_, err = DecodeAddress("not-an-address")
	require.Error(t, err)
}

func TestZeroAddress(t *testing.T) {
	var zero Address
	require.True(t, zero.IsZero())
	require.Equal(t, "", zero.String())
	require.False(t, AddressFromName(DAOPrefix, "x").IsZero())
}

func TestAddressFromNameNormalizesUnicode(t *testing.T) {
	composed := "jos\u00e9"
	decomposed := "jose\u0301"
	require.NotEqual(t, composed, decomposed)
	require.True(t, AddressFromName(DAOPrefix, composed).Equal(AddressFromName(DAOPrefix, decomposed)))
}
