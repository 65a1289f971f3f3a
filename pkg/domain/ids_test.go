package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vendorkyc/pkg/domain-errors"
)

// TestParseIDs validates the trust-boundary invariant that identifiers are
// valid, non-empty, non-nil UUIDs.
func TestParseIDs(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVendorID("  ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseRecordID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReviewerID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID with surrounding whitespace", func(t *testing.T) {
		raw := uuid.New()
		id, err := ParseVendorID(" " + raw.String() + "\n")
		require.NoError(t, err)
		assert.Equal(t, VendorID(raw), id)
		assert.False(t, id.IsNil())
	})
}

func TestTypedIDsAreDistinct(t *testing.T) {
	vendor := VendorID(uuid.New())
	record := RecordID(uuid.New())
	assert.NotEqual(t, uuid.UUID(vendor), uuid.UUID(record))
	assert.True(t, RecordID{}.IsNil())
}

func TestIDsMarshalAsStrings(t *testing.T) {
	raw := uuid.New()
	b, err := json.Marshal(struct {
		ID RecordID `json:"id"`
	}{RecordID(raw)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+raw.String()+`"}`, string(b))

	var back struct {
		ID RecordID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, RecordID(raw), back.ID)
}
