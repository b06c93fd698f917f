package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthnRequestRequiresDestination(t *testing.T) {
	_, err := NewAuthnRequest(AuthnRequestParams{SPEntityID: "https://sp.example.com"})
	require.Error(t, err)
	var samlErr *Error
	require.ErrorAs(t, err, &samlErr)
	assert.Equal(t, ErrConfiguration, samlErr.Kind)
}

func TestNewAuthnRequestDefaults(t *testing.T) {
	req, err := NewAuthnRequest(AuthnRequestParams{
		Destination: "https://idp.example.com/sso",
		SPEntityID:  "https://sp.example.com",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "2.0", req.Version)
	assert.Equal(t, HTTPPostBinding, req.ProtocolBinding)
	require.NotNil(t, req.RequestedAuthnContext)
	assert.Equal(t, []string{"urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"}, req.RequestedAuthnContext.AuthnContextClassRefs)
}

func TestNewLogoutRequestRequiresNameIDAndSessionIndex(t *testing.T) {
	_, err := NewLogoutRequest(LogoutRequestParams{Destination: "https://idp.example.com/slo", SPEntityID: "sp"})
	require.Error(t, err)

	_, err = NewLogoutRequest(LogoutRequestParams{
		Destination:  "https://idp.example.com/slo",
		SPEntityID:   "sp",
		NameID:       "user@example.com",
		SessionIndex: "",
	})
	require.Error(t, err)
}

func TestNewLogoutRequestSucceeds(t *testing.T) {
	req, err := NewLogoutRequest(LogoutRequestParams{
		Destination:  "https://idp.example.com/slo",
		SPEntityID:   "sp",
		NameID:       "user@example.com",
		SessionIndex: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", req.NameID.Value)
	assert.Equal(t, "session-1", req.SessionIndex)
}

func TestNewLogoutResponseRequiresInResponseTo(t *testing.T) {
	_, err := NewLogoutResponse(LogoutResponseParams{SPEntityID: "sp"})
	require.Error(t, err)
}

func TestNewLogoutResponseDefaultsToSuccess(t *testing.T) {
	resp, err := NewLogoutResponse(LogoutResponseParams{InResponseToID: "_req1", SPEntityID: "sp"})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, resp.Status.StatusCode.Value)
	assert.Equal(t, "_req1", resp.InResponseTo)
}

func TestNewArtifactResolveRequiresArtifact(t *testing.T) {
	_, err := NewArtifactResolve("sp", "https://idp.example.com/ars", "")
	require.Error(t, err)
}
