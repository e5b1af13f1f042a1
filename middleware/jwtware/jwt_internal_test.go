package jwtware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetExtractorsSkipsMalformedParts(t *testing.T) {
	extractors := GetExtractors("cookie:token, header:Authorization ,bogus,unknown:x")
	require.Len(t, extractors, 2)
}

func TestGetDefaultConfigPanicsWithoutValidator(t *testing.T) {
	require.Panics(t, func() {
		GetDefaultConfig(Config{})
	})
}

func TestGetDefaultConfigDefaults(t *testing.T) {
	cfg := GetDefaultConfig(Config{
		Validator: func(string) (any, error) { return nil, nil },
	})

	require.Equal(t, "claims", cfg.ContextKey)
	require.Equal(t, "Bearer", cfg.AuthScheme)
	require.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	require.NotNil(t, cfg.ErrorHandler)
	require.NotNil(t, cfg.SuccessHandler)
}
