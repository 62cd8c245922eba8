package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToISO(t *testing.T) {
	t.Run("passes ISO dates through unchanged", func(t *testing.T) {
		got, err := ToISO("2024-11-10")
		require.NoError(t, err)
		assert.Equal(t, "2024-11-10", got)
	})

	t.Run("rewrites Brazilian dates", func(t *testing.T) {
		got, err := ToISO("10/11/2024")
		require.NoError(t, err)
		assert.Equal(t, "2024-11-10", got)

		got, err = ToISO("01/02/2023")
		require.NoError(t, err)
		assert.Equal(t, "2023-02-01", got)
	})

	t.Run("rejects everything else carrying the original string", func(t *testing.T) {
		for _, input := range []string{"2024/11/10", "10-11-2024", "yesterday", "", "1/2/2024"} {
			_, err := ToISO(input)
			require.ErrorIs(t, err, ErrUnknownFormat, "input %q", input)
			assert.Contains(t, err.Error(), input)
		}
	})
}
