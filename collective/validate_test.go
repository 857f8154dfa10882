package collective

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name             string
		rank, size, root int
		n                int
		holdsData        bool
		want             error
	}{
		{"root in range", 0, 4, 3, 4, true, nil},
		{"root equals size", 0, 3, 3, 4, true, ErrInvalidRoot},
		{"root far out", 1, 3, 5, 4, false, ErrInvalidRoot},
		{"negative root", 1, 3, -1, 4, false, ErrInvalidRoot},
		{"empty at root", 0, 6, 0, 0, true, ErrEmptyPayload},
		{"empty replica", 2, 6, 0, 0, true, ErrEmptyPayload},
		{"receiver without buffer", 2, 6, 0, 0, false, nil},
		{"count limit", 0, 2, 0, MaxCount, true, nil},
		{"over count limit", 0, 2, 0, MaxCount + 1, true, ErrPayloadTooLarge},
		{"rank outside roster", 4, 4, 0, 1, true, ErrTransport},
		{"no participants", 0, 0, 0, 1, true, ErrTransport},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := validate(c.rank, c.size, c.root, c.n, c.holdsData)
			if c.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, c.want)
		})
	}
}
