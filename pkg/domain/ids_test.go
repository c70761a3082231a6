package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentialID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCredentialID("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCredentialID("not-a-uuid")
		require.Error(t, err)
	})

	t.Run("accepts valid UUID and round-trips", func(t *testing.T) {
		fresh := NewCredentialID()
		parsed, err := ParseCredentialID(fresh.String())
		require.NoError(t, err)
		assert.Equal(t, fresh, parsed)
	})
}

func TestParseSessionID(t *testing.T) {
	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("definitely not")
		require.Error(t, err)
	})

	t.Run("fresh ids are distinct", func(t *testing.T) {
		assert.NotEqual(t, NewSessionID(), NewSessionID())
	})
}

// Ids must serialize as canonical UUID strings, not as raw byte arrays, since
// they appear in API responses and persisted session state.
func TestIDJSONRepresentation(t *testing.T) {
	credentialID := NewCredentialID()

	raw, err := json.Marshal(credentialID)
	require.NoError(t, err)
	assert.Equal(t, `"`+credentialID.String()+`"`, string(raw))

	var decoded CredentialID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, credentialID, decoded)

	var invalid CredentialID
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &invalid))
}

func TestTypeDistinction(t *testing.T) {
	credentialID := CredentialID(uuid.New())
	sessionID := SessionID(uuid.New())

	// These would fail to compile if the types were interchangeable:
	// var _ CredentialID = sessionID // compile error
	// var _ SessionID = credentialID // compile error

	assert.NotEqual(t, uuid.UUID(credentialID), uuid.UUID(sessionID))
}

func TestDIDValid(t *testing.T) {
	cases := []struct {
		did   DID
		valid bool
	}{
		{"did:attester:4q7J3mNv", true},
		{"did:claimer:abc", true},
		{"did::abc", false},
		{"did:attester:", false},
		{"attester:abc", false},
		{"", false},
	}
	for _, tc := range cases {
		t.Run(string(tc.did), func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.did.Valid())
		})
	}
}
