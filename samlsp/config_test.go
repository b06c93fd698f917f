package samlsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtendedConfigDefaults(t *testing.T) {
	cfg, err := ParseExtendedConfig([]byte(`signingCertAlias: sp-signing`))
	require.NoError(t, err)
	assert.Equal(t, DefaultSignatureMethod, cfg.SignatureMethod)
	assert.Equal(t, DefaultDigestMethod, cfg.DigestMethod)
	assert.Equal(t, defaultAssertionSkewSeconds, cfg.AssertionTimeSkewSeconds)
	assert.Equal(t, "default", cfg.DefaultAuthnContextLabel)
}

func TestParseExtendedConfigAuthnContextMapping(t *testing.T) {
	doc := `
spAuthncontextClassrefMapping:
  - "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport|1|default"
  - "urn:oasis:names:tc:SAML:2.0:ac:classes:X509|2|strong"
default: default
`
	cfg, err := ParseExtendedConfig([]byte(doc))
	require.NoError(t, err)
	require.Len(t, cfg.AuthnContextMappings, 2)

	assert.Equal(t, "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport", cfg.ClassRefForLevel("1"))
	level, ok := cfg.LevelForClassRef("urn:oasis:names:tc:SAML:2.0:ac:classes:X509")
	require.True(t, ok)
	assert.Equal(t, "2", level)
}

func TestParseExtendedConfigRejectsMalformedMapping(t *testing.T) {
	_, err := ParseExtendedConfig([]byte(`spAuthncontextClassrefMapping: ["missing-pipes"]`))
	assert.Error(t, err)
}

func TestRelayStateAllowed(t *testing.T) {
	cfg := &ExtendedConfig{RelayStateUrlList: []string{"https://app.example.com/dashboard"}}

	assert.True(t, cfg.RelayStateAllowed(""))
	assert.True(t, cfg.RelayStateAllowed("https://app.example.com/dashboard"))
	assert.False(t, cfg.RelayStateAllowed("https://evil.example.com/"))
}
