package samlsp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedletgo/saml"
)

const unsignedResponseXML = `<?xml version="1.0"?>
<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"
                 xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"
                 ID="_resp1" Version="2.0" IssueInstant="2026-01-01T00:00:00Z"
                 InResponseTo="_req1">
  <saml:Issuer>https://idp.example.com</saml:Issuer>
  <samlp:Status><samlp:StatusCode Value="urn:oasis:names:tc:SAML:2.0:status:Success"/></samlp:Status>
  <saml:Assertion ID="_assertion1" Version="2.0" IssueInstant="2026-01-01T00:00:00Z">
    <saml:Issuer>https://idp.example.com</saml:Issuer>
    <saml:Subject>
      <saml:NameID Format="urn:oasis:names:tc:SAML:2.0:nameid-format:transient">user@example.com</saml:NameID>
    </saml:Subject>
    <saml:Conditions NotBefore="2026-01-01T00:00:00Z" NotOnOrAfter="2026-01-01T01:00:00Z">
      <saml:AudienceRestriction><saml:Audience>https://sp.example.com</saml:Audience></saml:AudienceRestriction>
    </saml:Conditions>
  </saml:Assertion>
</samlp:Response>`

func newTestValidator() *Validator {
	store := NewMetadataStore()
	idp := &saml.EntityDescriptor{EntityID: "https://idp.example.com"}
	store.AddIdP(idp, NewCircleOfTrust("federation-a", "https://idp.example.com"), nil)
	correlation := NewRequestCorrelationCache()
	correlation.Add("https://idp.example.com", "_req1", saml.TimeNow())
	return NewValidator(store, correlation, "https://sp.example.com", 0, false)
}

func TestValidateRejectsUnsignedResponse(t *testing.T) {
	parsed, err := saml.ParseAuthnResponse([]byte(unsignedResponseXML))
	require.NoError(t, err)

	v := newTestValidator()
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	assert.Equal(t, saml.ErrSignatureMissing, samlErr.Kind)
}

func TestValidateRejectsUnknownIssuer(t *testing.T) {
	unknownIssuerXML := `<?xml version="1.0"?>
<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion" ID="_r" Version="2.0" IssueInstant="2026-01-01T00:00:00Z">
  <saml:Issuer>https://evil.example.com</saml:Issuer>
  <samlp:Status><samlp:StatusCode Value="urn:oasis:names:tc:SAML:2.0:status:Success"/></samlp:Status>
</samlp:Response>`

	parsed, err := saml.ParseAuthnResponse([]byte(unknownIssuerXML))
	require.NoError(t, err)

	v := newTestValidator()
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	assert.Equal(t, saml.ErrUnknownIssuer, samlErr.Kind)
}

func TestValidatorAllowsConfiguredClockSkew(t *testing.T) {
	store := NewMetadataStore()
	store.AddIdP(&saml.EntityDescriptor{EntityID: "https://idp.example.com"}, NewCircleOfTrust("f", "https://idp.example.com"), nil)
	v := NewValidator(store, NewRequestCorrelationCache(), "https://sp.example.com", 5*time.Minute, false)
	assert.Equal(t, 5*time.Minute, v.clockSkew)
}
