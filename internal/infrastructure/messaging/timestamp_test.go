package messaging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWireTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339 utc", "2024-02-25T10:30:00Z", time.Date(2024, 2, 25, 10, 30, 0, 0, time.UTC)},
		{"rfc3339 with offset", "2024-02-25T10:30:00-03:00", time.Date(2024, 2, 25, 13, 30, 0, 0, time.UTC)},
		{"zone-less is utc", "2024-02-25T10:30:00", time.Date(2024, 2, 25, 10, 30, 0, 0, time.UTC)},
		{"zone-less with fraction", "2024-02-25T10:30:00.1234567", time.Date(2024, 2, 25, 10, 30, 0, 123456700, time.UTC)},
		{"space separated", "2024-02-25 10:30:00", time.Date(2024, 2, 25, 10, 30, 0, 0, time.UTC)},
		{"bare date", "2024-02-25", time.Date(2024, 2, 25, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWireTime(tt.input)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	t.Run("empty and default values are zero", func(t *testing.T) {
		for _, s := range []string{"", "  ", "0001-01-01T00:00:00", "0001-01-01T00:00:00Z"} {
			got, err := ParseWireTime(s)
			require.NoError(t, err)
			assert.True(t, got.IsZero(), s)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseWireTime("yesterday")
		var decErr *DecodingError
		assert.ErrorAs(t, err, &decErr)
	})
}

func TestWireTime_JSON(t *testing.T) {
	t.Run("null decodes to zero", func(t *testing.T) {
		var wt WireTime
		require.NoError(t, json.Unmarshal([]byte(`null`), &wt))
		assert.True(t, wt.IsZero())
	})

	t.Run("non-string is rejected", func(t *testing.T) {
		var wt WireTime
		err := json.Unmarshal([]byte(`12345`), &wt)
		var decErr *DecodingError
		assert.ErrorAs(t, err, &decErr)
	})

	t.Run("round trips through rfc3339", func(t *testing.T) {
		in := WireTime{Time: time.Date(2024, 2, 25, 10, 30, 0, 0, time.UTC)}
		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, `"2024-02-25T10:30:00Z"`, string(data))

		var out WireTime
		require.NoError(t, json.Unmarshal(data, &out))
		assert.True(t, in.Equal(out.Time))
	})
}
