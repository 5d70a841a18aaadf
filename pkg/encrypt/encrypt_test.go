package encrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"Str0ng!pass", true},
		{"Sh0rt!", false},
		{"nouppercase1!", false},
		{"NoDigits!!", false},
		{"NoSpecial123", false},
	}
	for _, tt := range tests {
		err := ValidatePasswordStrength(tt.password)
		if tt.ok {
			assert.NoError(t, err, tt.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tt.password)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!pass", hash)

	assert.NoError(t, CheckPassword(hash, "Str0ng!pass"))
	assert.ErrorIs(t, CheckPassword(hash, "Wr0ng!pass"), ErrPasswordMismatch)

	_, err = HashPassword("weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
}
