package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNoteName(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"C4", 60, false},
		{"A4", 69, false},
		{"C#4", 61, false},
		{"Db4", 61, false},
		{"bb3", 58, false},
		{"C-1", 0, false},
		{"G9", 127, false},
		{" E2 ", 40, false},
		{"G#9", 0, true},
		{"H4", 0, true},
		{"C", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNoteName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNote)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNoteName(t *testing.T) {
	assert.Equal(t, "C4", NoteName(60))
	assert.Equal(t, "C#4", NoteName(61))
	assert.Equal(t, "C-1", NoteName(0))
	assert.Equal(t, "G9", NoteName(127))
	assert.Equal(t, "128", NoteName(128))

	for p := MinPitch; p <= MaxPitch; p++ {
		back, err := ParseNoteName(NoteName(p))
		require.NoError(t, err)
		assert.Equal(t, p, back)
	}
}

func TestParseNoteNames(t *testing.T) {
	got, err := ParseNoteNames([]string{"C4", "D4", "E4"})
	require.NoError(t, err)
	assert.Equal(t, []int{60, 62, 64}, got)

	_, err = ParseNoteNames([]string{"C4", "X4"})
	assert.ErrorContains(t, err, "position 1")
}
