package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskBankAccount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1234", "1234"},
		{"12 34", "1234"},
		{"a", "a"},
		{"12345", "*2345"},
		{"GB29 NWBK 6016 1331 9268 19", "******************6819"},
		{"  99 ", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := MaskBankAccount(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, MaskBankAccount(""))
}

func TestMaskBankAccountKeepsLastFour(t *testing.T) {
	for _, input := range []string{"123456789", "ab cd ef gh", "\t1 2 3 4 5 6\n", "ÄÖÜ12345"} {
		cleaned := []rune(strings.Join(strings.Fields(input), ""))
		got := []rune(*MaskBankAccount(input))

		require.Len(t, got, len(cleaned), input)
		assert.Equal(t, string(cleaned[len(cleaned)-4:]), string(got[len(got)-4:]), input)
		assert.Equal(t, strings.Repeat("*", len(cleaned)-4), string(got[:len(got)-4]), input)
	}
}

func TestDisjointSet(t *testing.T) {
	d := newDisjointSet(6)
	d.union(4, 5)
	d.union(1, 4)
	d.union(3, 2)

	assert.Equal(t, d.find(1), d.find(5))
	assert.Equal(t, 1, d.find(5))
	assert.NotEqual(t, d.find(0), d.find(1))
	assert.Equal(t, [][]int{{0}, {1, 4, 5}, {2, 3}}, d.components())
}
