package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSystemAccountRef(t *testing.T) {
	ref, err := NewSystemAccountRef("main", "SYSTEM_INCOME")
	require.NoError(t, err)
	assert.Equal(t, "main", ref.LedgerSlug())
	assert.Equal(t, "SYSTEM_INCOME", ref.AccountSlug())
	assert.Equal(t, RefTypeSystem, ref.Type())
}

func TestAccountNameValidation(t *testing.T) {
	valid := []string{"X", "ab", "SYSTEM_INCOME", "a-b-c", "a_1", "0x0", "A1"}
	for _, name := range valid {
		ref, err := NewSystemAccountRef("main", name)
		require.NoError(t, err, "name %q", name)
		assert.Equal(t, name, ref.AccountSlug())
	}

	_, err := NewSystemAccountRef("main", "")
	require.ErrorIs(t, err, ErrAccountNameEmpty)

	invalid := []string{"_x", "x_", "-abc", "abc-", "a b", "a:b", "é", "a.b"}
	for _, name := range invalid {
		_, err := NewSystemAccountRef("main", name)
		require.ErrorIs(t, err, ErrAccountNameInvalid, "name %q", name)
	}
}

func TestNewEntityAccountRef(t *testing.T) {
	ref, err := NewEntityAccountRef("main", "USER_RECEIVABLES", "2")
	require.NoError(t, err)
	assert.Equal(t, "USER_RECEIVABLES:2", ref.AccountSlug())
	assert.Equal(t, RefTypeEntity, ref.Type())
	assert.Equal(t, "USER_RECEIVABLES", ref.Name())
	assert.Equal(t, "2", ref.ExternalID())
}

func TestNewEntityAccountRefFromID(t *testing.T) {
	ref, err := NewEntityAccountRefFromID("main", "USER_RECEIVABLES", 42)
	require.NoError(t, err)
	assert.Equal(t, "USER_RECEIVABLES:42", ref.AccountSlug())
}

func TestEntityAccountRefNameValidated(t *testing.T) {
	_, err := NewEntityAccountRef("main", "_bad_", "2")
	require.ErrorIs(t, err, ErrAccountNameInvalid)

	_, err = NewEntityAccountRef("main", "", "2")
	require.ErrorIs(t, err, ErrAccountNameEmpty)
}

func TestExternalIDValidation(t *testing.T) {
	invalid := []string{"", "  ", "\t", "a:b", "a b", "a\tb", ":", "with space"}
	for _, id := range invalid {
		_, err := NewEntityAccountRef("main", "USER_RECEIVABLES", id)
		require.ErrorIs(t, err, ErrInvalidExternalID, "id %q", id)
	}

	valid := []string{"2", "abc", "user-2", "user_2", "UUID-like-0000"}
	for _, id := range valid {
		ref, err := NewEntityAccountRef("main", "USER_RECEIVABLES", id)
		require.NoError(t, err, "id %q", id)
		assert.Equal(t, "USER_RECEIVABLES:"+id, ref.AccountSlug())
	}
}
