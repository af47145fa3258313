package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "registrar/pkg/domain-errors"
)

func TestParseSessionID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSessionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseSessionID(uuid.Nil.String())
		require.Error(t, err)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		want := uuid.New()
		got, err := ParseSessionID(want.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(want), got)
	})
}

func TestSessionID_JSONRoundTrip(t *testing.T) {
	original := NewSessionID()

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(raw), "IDs serialize as uuid strings")

	var decoded SessionID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)

	var bad SessionID
	assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &bad))
}

func TestParseID_RejectsHostileInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE sessions;--"},
		{"path traversal", "../../../etc/passwd"},
		{"oversized input", strings.Repeat("a", 1000)},
		{"whitespace only", "   "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOrgID(tc.input)
			require.Error(t, err)
		})
	}
}
