package samlsp

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"

	"github.com/fedletgo/saml"
)

const (
	testIdPEntityID = "https://idp.example.com/metadata"
	testSPEntityID  = "https://sp.example.com/metadata"
	testACSURL      = "https://sp.example.com/acs"
)

// newTestResponse builds a minimal but complete Response/Assertion pair
// answering inResponseTo, valid over [notBefore, notOnOrAfter) and
// restricted to audience.
func newTestResponse(inResponseTo string, notBefore, notOnOrAfter time.Time, audience string) *saml.Response {
	now := saml.TimeNow()
	return &saml.Response{
		ID:           saml.NewID(),
		InResponseTo: inResponseTo,
		Version:      "2.0",
		IssueInstant: saml.RelaxedTime(now),
		Destination:  testACSURL,
		Issuer:       saml.Issuer{Value: testIdPEntityID},
		Status:       saml.Status{StatusCode: saml.StatusCode{Value: saml.StatusSuccess}},
		Assertion: &saml.Assertion{
			ID:           saml.NewID(),
			Version:      "2.0",
			IssueInstant: saml.RelaxedTime(now),
			Issuer:       saml.Issuer{Value: testIdPEntityID},
			Subject: &saml.Subject{
				NameID: &saml.NameID{Format: saml.EmailAddressNameIDFormat, Value: "jane@example.com"},
				SubjectConfirmations: []saml.SubjectConfirmation{{
					Method: "urn:oasis:names:tc:SAML:2.0:cm:bearer",
					SubjectConfirmationData: &saml.SubjectConfirmationData{
						InResponseTo: inResponseTo,
						NotOnOrAfter: saml.RelaxedTime(notOnOrAfter),
						Recipient:    testACSURL,
					},
				}},
			},
			Conditions: &saml.Conditions{
				NotBefore:    saml.RelaxedTime(notBefore),
				NotOnOrAfter: saml.RelaxedTime(notOnOrAfter),
				AudienceRestrictions: []saml.AudienceRestriction{{
					Audiences: []saml.Audience{{Value: audience}},
				}},
			},
			AuthnStatements: []saml.AuthnStatement{{
				AuthnInstant: saml.RelaxedTime(now),
				SessionIndex: "session-1",
				AuthnContext: saml.AuthnContext{AuthnContextClassRef: "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"},
			}},
		},
	}
}

// signResponse marshals resp and returns the enveloped-signed document
// bytes, signing the Response's root element with key/cert.
func signResponse(t *testing.T, resp *saml.Response, key crypto.Signer, cert *x509.Certificate) []byte {
	t.Helper()
	raw, err := xml.Marshal(resp)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))

	signer, err := NewXMLSigner(key, cert, "")
	require.NoError(t, err)
	signed, err := signer.SignElement(doc.Root())
	require.NoError(t, err)
	doc.SetRoot(signed)

	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	return out
}

func newIdPMetadata(cert *x509.Certificate) *saml.EntityDescriptor {
	certB64 := base64.StdEncoding.EncodeToString(cert.Raw)
	return &saml.EntityDescriptor{
		EntityID: testIdPEntityID,
		IDPSSODescriptors: []saml.IDPSSODescriptor{{
			SSODescriptor: saml.SSODescriptor{
				RoleDescriptor: saml.RoleDescriptor{
					KeyDescriptors: []saml.KeyDescriptor{{
						Use: "signing",
						KeyInfo: saml.KeyInfo{
							X509Data: saml.X509Data{
								X509Certificates: []saml.X509Certificate{{Data: certB64}},
							},
						},
					}},
				},
				SingleLogoutServices: []saml.Endpoint{{
					Binding:  saml.HTTPRedirectBinding,
					Location: "https://idp.example.com/slo",
				}},
			},
			SingleSignOnServices: []saml.Endpoint{{
				Binding:  saml.HTTPRedirectBinding,
				Location: "https://idp.example.com/sso",
			}},
		}},
	}
}

func newTestValidatorWithCache(t *testing.T, cert *x509.Certificate, cache *RequestCorrelationCache) *Validator {
	t.Helper()
	store := NewMetadataStore()
	cot := NewCircleOfTrust("test-federation", testIdPEntityID, testSPEntityID)
	store.AddIdP(newIdPMetadata(cert), cot, nil)
	return NewValidator(store, cache, testSPEntityID, 0, false)
}

// S1: a correctly signed Response within its validity window, targeting
// this SP's audience and answering a request this SP issued, validates
// successfully and its correlation entry is consumed.
func TestValidateHappyPathPOSTSSO(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()
	requestID := saml.NewID()
	cache.Add(testIdPEntityID, requestID, time.Now())

	resp := newTestResponse(requestID, time.Now().Add(-time.Minute), time.Now().Add(time.Minute), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	validated, err := v.Validate(parsed)
	require.NoError(t, err)
	require.Equal(t, testIdPEntityID, validated.Issuer)
	require.Equal(t, "jane@example.com", validated.NameID.Value)

	require.False(t, cache.Contains(testIdPEntityID, requestID))
}

// S2: a Response whose AudienceRestriction does not name this SP fails
// validation, and the correlation entry is still removed so it cannot be
// replayed against a later, possibly malicious, response (§4.6 invariant d).
func TestValidateAudienceMismatchConsumesCorrelation(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()
	requestID := saml.NewID()
	cache.Add(testIdPEntityID, requestID, time.Now())

	resp := newTestResponse(requestID, time.Now().Add(-time.Minute), time.Now().Add(time.Minute), "https://someone-else.example.com")
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	require.Equal(t, saml.ErrAudienceMismatch, samlErr.Kind)

	require.False(t, cache.Contains(testIdPEntityID, requestID))
}

// S3: a Response outside its validity window, even by a small margin, is
// rejected once it exceeds the Validator's configured clock skew.
func TestValidateRejectsExpiredAssertionBeyondSkew(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()
	requestID := saml.NewID()
	cache.Add(testIdPEntityID, requestID, time.Now())

	resp := newTestResponse(requestID, time.Now().Add(-time.Hour), time.Now().Add(-time.Minute), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	require.Equal(t, saml.ErrAssertionExpired, samlErr.Kind)
}

// TestValidateAllowsExpiredAssertionWithinSkew confirms the clock skew
// widens the validity window rather than merely being accepted and ignored.
func TestValidateAllowsExpiredAssertionWithinSkew(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()
	requestID := saml.NewID()
	cache.Add(testIdPEntityID, requestID, time.Now())

	resp := newTestResponse(requestID, time.Now().Add(-time.Hour), time.Now().Add(-10*time.Second), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	store := NewMetadataStore()
	cot := NewCircleOfTrust("test-federation", testIdPEntityID, testSPEntityID)
	store.AddIdP(newIdPMetadata(cert), cot, nil)
	v := NewValidator(store, cache, testSPEntityID, 30*time.Second, false)

	_, err = v.Validate(parsed)
	require.NoError(t, err)
}

// S4: tampering with a signed Response after it was signed invalidates its
// signature even though the document still parses and every other field is
// well formed.
func TestValidateRejectsTamperedSignedResponse(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()
	requestID := saml.NewID()
	cache.Add(testIdPEntityID, requestID, time.Now())

	resp := newTestResponse(requestID, time.Now().Add(-time.Minute), time.Now().Add(time.Minute), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	nameID := doc.FindElement("//NameID")
	require.NotNil(t, nameID)
	nameID.SetText("mallory@example.com")
	tampered, err := doc.WriteToBytes()
	require.NoError(t, err)

	parsed, err := saml.ParseAuthnResponse(tampered)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	require.Equal(t, saml.ErrSignatureInvalid, samlErr.Kind)

	// The correlation entry is still consumed even though the signature
	// failed, consistent with invariant (d): a tampered response must not
	// leave its pending request replayable either.
	require.False(t, cache.Contains(testIdPEntityID, requestID))
}

// TestValidateRejectsUnsolicitedResponseByDefault confirms InResponseTo
// correlation is enforced unless the Validator was explicitly configured to
// allow IdP-initiated SSO.
func TestValidateRejectsUnsolicitedResponseByDefault(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()

	resp := newTestResponse("", time.Now().Add(-time.Minute), time.Now().Add(time.Minute), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	require.Equal(t, saml.ErrCorrelationMismatch, samlErr.Kind)
}

// TestValidateRejectsCorrelationNotIssued confirms a Response claiming to
// answer a request this SP never sent is rejected even though it is
// otherwise perfectly formed and signed.
func TestValidateRejectsCorrelationNotIssued(t *testing.T) {
	key, cert := generateTestCert(t)
	cache := NewRequestCorrelationCache()

	resp := newTestResponse(saml.NewID(), time.Now().Add(-time.Minute), time.Now().Add(time.Minute), testSPEntityID)
	signed := signResponse(t, resp, key, cert)

	parsed, err := saml.ParseAuthnResponse(signed)
	require.NoError(t, err)

	v := newTestValidatorWithCache(t, cert, cache)
	_, err = v.Validate(parsed)
	require.Error(t, err)
	var samlErr *saml.Error
	require.ErrorAs(t, err, &samlErr)
	require.Equal(t, saml.ErrCorrelationMismatch, samlErr.Kind)
}
