package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name        string
		explicit    int
		profile     int
		want        int
		substituted bool
	}{
		{name: "Explicit wins", explicit: 1208, profile: 37, want: 1208},
		{name: "Profile default", explicit: 0, profile: 297, want: 297},
		{name: "Problematic profile replaced", explicit: 0, profile: 5026, want: 5035, substituted: true},
		{name: "Explicit problematic kept", explicit: 5026, profile: 37, want: 5026},
		{name: "Negative explicit falls back", explicit: -1, profile: 37, want: 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, substituted := Negotiate(tt.explicit, tt.profile)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.substituted, substituted)
		})
	}
}

func TestValid(t *testing.T) {
	assert.False(t, Valid(0))
	assert.False(t, Valid(-5))
	assert.False(t, Valid(65536))
	assert.True(t, Valid(1))
	assert.True(t, Valid(65535))
}

func TestDecode(t *testing.T) {
	// "HELLO" in EBCDIC 37
	got, err := Decode(37, []byte{0xC8, 0xC5, 0xD3, 0xD3, 0xD6})
	assert.NoError(t, err)
	assert.Equal(t, "HELLO", got)

	got, err = Decode(0, []byte{0xC1})
	assert.NoError(t, err)
	assert.Equal(t, "A", got)

	got, err = Decode(1208, []byte("héllo"))
	assert.NoError(t, err)
	assert.Equal(t, "héllo", got)

	_, err = Decode(5035, []byte{0x01})
	assert.ErrorIs(t, err, ErrUnsupported)
}
