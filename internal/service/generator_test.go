package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerificationCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateVerificationCode()
		require.NoError(t, err)
		require.Len(t, code, VerificationCodeSize)
		for _, digit := range code {
			assert.GreaterOrEqual(t, digit, '1')
			assert.LessOrEqual(t, digit, '9')
		}
		seen[code] = true
	}
	// 200 draws from 6561 possible codes should not collapse to a handful
	assert.Greater(t, len(seen), 100)
}

func TestGenerateSessionID(t *testing.T) {
	first, err := GenerateSessionID()
	require.NoError(t, err)
	second, err := GenerateSessionID()
	require.NoError(t, err)

	assert.Len(t, first, 64) // 32 bytes hex encoded
	assert.NotEqual(t, first, second)
}
