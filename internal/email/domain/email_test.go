package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayRoundTrip(t *testing.T) {
	original := StringArray{"INBOX", "UNREAD", "cold-sales"}

	value, err := original.Value()
	require.NoError(t, err)

	var decoded StringArray
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, original, decoded)
}

func TestStringArrayScan(t *testing.T) {
	t.Run("nil becomes empty", func(t *testing.T) {
		var a StringArray
		require.NoError(t, a.Scan(nil))
		assert.Empty(t, a)
	})

	t.Run("empty bytes become empty", func(t *testing.T) {
		var a StringArray
		require.NoError(t, a.Scan([]byte{}))
		assert.Empty(t, a)
	})

	t.Run("string input", func(t *testing.T) {
		var a StringArray
		require.NoError(t, a.Scan(`["INBOX"]`))
		assert.Equal(t, StringArray{"INBOX"}, a)
	})
}

func TestStringArrayContains(t *testing.T) {
	a := StringArray{"INBOX", "UNREAD"}
	assert.True(t, a.Contains("INBOX"))
	assert.False(t, a.Contains("STARRED"))
	assert.False(t, StringArray(nil).Contains("INBOX"))
}

func TestClassificationText(t *testing.T) {
	tests := []struct {
		name     string
		email    Email
		expected string
	}{
		{
			name:     "body text preferred",
			email:    Email{BodyText: "full body", Snippet: "snippet"},
			expected: "full body",
		},
		{
			name:     "snippet fallback",
			email:    Email{Snippet: "snippet only"},
			expected: "snippet only",
		},
		{
			name:     "placeholder when nothing available",
			email:    Email{},
			expected: "[No body text]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.email.ClassificationText())
		})
	}
}
