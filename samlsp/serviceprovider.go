package samlsp

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/fedletgo/saml"
	"github.com/fedletgo/saml/samlsp/samlcodec"
)

// SPController is the top-level object a host application drives: it
// builds outgoing AuthnRequest/LogoutRequest/LogoutResponse messages,
// validates incoming responses, and exports this SP's own metadata. It
// treats IdP configuration (metadata, circle of trust, extended config)
// as per-IdP state in a MetadataStore rather than a map of whole
// provider values, since a single SP speaks the same protocol to
// every configured IdP.
type SPController struct {
	EntityID     string
	AcsURL       url.URL
	SloURL       url.URL
	MetadataURL  url.URL

	SigningKey  crypto.Signer
	Certificate *x509.Certificate

	Store       *MetadataStore
	Correlation *RequestCorrelationCache
	Config      *ExtendedConfig

	HTTPClient *http.Client

	AssertionHandler AssertionHandler
}

// defaultValidator builds a Validator bound to this controller's store,
// correlation cache, and entity ID, using the configured assertion clock
// skew.
func (sp *SPController) defaultValidator() *Validator {
	skew := time.Duration(defaultAssertionSkewSeconds) * time.Second
	allowUnsolicited := false
	if sp.Config != nil {
		if sp.Config.AssertionTimeSkewSeconds > 0 {
			skew = time.Duration(sp.Config.AssertionTimeSkewSeconds) * time.Second
		}
	}
	return NewValidator(sp.Store, sp.Correlation, sp.EntityID, skew, allowUnsolicited)
}

// AuthnRequestOptions carries the per-call parameters SendAuthnRequest
// accepts beyond the target IdP, per §4.10.
type AuthnRequestOptions struct {
	// RelayState is opaque state echoed back on the matching AuthnResponse.
	// It is checked against the IdP's ExtendedConfig.RelayStateUrlList
	// whitelist before the AuthnRequest is emitted.
	RelayState string
	// RequestBinding, if set, is the preferred SAML binding URN for
	// delivering the AuthnRequest (e.g. HTTPRedirectBinding). When empty or
	// not advertised, the IdP's HTTP-Redirect SingleSignOnService is used,
	// or else its first listed one.
	RequestBinding string
	ForceAuthn     *bool
	IsPassive      *bool
	AllowCreate    *bool
	// AuthLevel selects an entry of the IdP's AuthnContextClassRef map by
	// Level. Falls back to the map's designated default label, and from
	// there to PasswordProtectedTransport, when empty or unmatched.
	AuthLevel string
}

// SendAuthnRequest builds an AuthnRequest for idpEntityID, registers its ID
// with the correlation cache, and returns the fully encoded redirect (or
// POST form) it should be sent with, per opts.RequestBinding or (absent
// that) HTTP-Redirect when the IdP advertises it, else the IdP's first
// listed binding.
func (sp *SPController) SendAuthnRequest(ctx context.Context, idpEntityID string, opts AuthnRequestOptions) (redirectURL string, postHTML []byte, err error) {
	idp, _, idpConfig, ok := sp.Store.LookupIdP(idpEntityID)
	if !ok {
		return "", nil, saml.NewError(saml.ErrUnknownIssuer, "no configured IdP with this entity ID", nil)
	}
	cfg := sp.effectiveConfig(idpConfig)

	if !cfg.RelayStateAllowed(opts.RelayState) {
		return "", nil, saml.NewError(saml.ErrRelayStateRejected, "RelayState is not in the configured whitelist", nil)
	}

	ssoURL, binding := ssoServiceFor(idp, opts.RequestBinding)
	if ssoURL == "" {
		return "", nil, saml.NewError(saml.ErrConfiguration, "IdP metadata has no SingleSignOnService", nil)
	}

	classRef := ""
	if opts.AuthLevel != "" {
		classRef = cfg.ClassRefForLevel(opts.AuthLevel)
	}
	if classRef == "" {
		classRef = cfg.ClassRefForLabel(cfg.DefaultAuthnContextLabel)
	}
	req, err := saml.NewAuthnRequest(saml.AuthnRequestParams{
		Destination:                 ssoURL,
		AssertionConsumerServiceURL: sp.AcsURL.String(),
		ProtocolBinding:             saml.HTTPPostBinding,
		SPEntityID:                  sp.EntityID,
		ForceAuthn:                  opts.ForceAuthn,
		IsPassive:                   opts.IsPassive,
		AllowCreate:                 opts.AllowCreate,
		AuthnContextClassRef:        classRef,
	})
	if err != nil {
		return "", nil, err
	}

	sp.Correlation.Add(idpEntityID, req.ID, saml.TimeNow())

	messageXML, err := marshalXML(req)
	if err != nil {
		return "", nil, err
	}

	switch binding {
	case saml.HTTPRedirectBinding:
		encoded, err := samlcodec.CompressBase64URLEncode(messageXML)
		if err != nil {
			return "", nil, err
		}
		u, _ := url.Parse(ssoURL)
		// The Redirect binding's own default (RSA-SHA1, §4.6) is kept
		// regardless of cfg.SignatureMethod, which governs XML-DSig
		// signing for the POST/SOAP bindings instead (§3).
		signer := NewRedirectSigner(rsaKeyOrNil(sp.SigningKey), sp.Certificate, "")
		query, err := signer.SignQuery(SAMLRequestParam, encoded, opts.RelayState)
		if err != nil {
			return "", nil, err
		}
		u.RawQuery = query
		return u.String(), nil, nil
	default:
		signedXML, err := marshalSigned(req, sp.SigningKey, sp.Certificate, cfg.SignatureMethod)
		if err != nil {
			return "", nil, err
		}
		return "", postForm(ssoURL, samlcodec.Base64Encode(signedXML), opts.RelayState, string(SAMLRequestParam)), nil
	}
}

// GetAuthnResponse base64-decodes and validates an AuthnResponse received
// via HTTP-POST (the SAMLResponse form value) and, on success, invokes the
// configured AssertionHandler before returning the trusted assertion.
// Artifact-delivered responses go through GetAuthnResponseFromArtifact.
func (sp *SPController) GetAuthnResponse(encodedResponse string) (*ValidatedAssertion, error) {
	raw, err := samlcodec.Base64Decode(encodedResponse)
	if err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot decode SAMLResponse", err)
	}
	return sp.validateRawAuthnResponse(raw)
}

// GetAuthnResponseFromArtifact resolves artifact via back-channel SOAP and
// validates the embedded AuthnResponse.
func (sp *SPController) GetAuthnResponseFromArtifact(ctx context.Context, artifact string) (*ValidatedAssertion, error) {
	cfg := sp.effectiveConfig(nil)
	resolver := NewArtifactResolver(sp.EntityID, sp.SigningKey, sp.Certificate, cfg.SignatureMethod, sp.HTTPClient, sp.Store)
	raw, err := resolver.Resolve(ctx, artifact)
	if err != nil {
		return nil, err
	}
	return sp.validateRawAuthnResponse(raw)
}

func (sp *SPController) validateRawAuthnResponse(raw []byte) (*ValidatedAssertion, error) {
	parsed, err := saml.ParseAuthnResponse(raw)
	if err != nil {
		return nil, err
	}
	validated, err := sp.defaultValidator().Validate(parsed)
	if err != nil {
		return nil, err
	}
	if sp.AssertionHandler != nil {
		if err := sp.AssertionHandler.HandleAssertion(parsed.Response().Assertion); err != nil {
			return nil, saml.NewError(saml.ErrConfiguration, "assertion handler rejected the assertion", err)
		}
	}
	return validated, nil
}

// SendLogoutRequest builds and dispatches (by redirect URL) a LogoutRequest
// to the named IdP for the given subject, registering it for correlation.
func (sp *SPController) SendLogoutRequest(idpEntityID, nameID, nameIDFormat, sessionIndex string) (string, error) {
	idp, _, _, ok := sp.Store.LookupIdP(idpEntityID)
	if !ok {
		return "", saml.NewError(saml.ErrUnknownIssuer, "no configured IdP with this entity ID", nil)
	}
	destination := sloServiceFor(idp)
	if destination == "" {
		return "", saml.NewError(saml.ErrConfiguration, "IdP metadata has no SingleLogoutService", nil)
	}

	req, err := saml.NewLogoutRequest(saml.LogoutRequestParams{
		Destination:  destination,
		SPEntityID:   sp.EntityID,
		NameID:       nameID,
		NameIDFormat: nameIDFormat,
		SessionIndex: sessionIndex,
	})
	if err != nil {
		return "", err
	}
	sp.Correlation.Add(idpEntityID, req.ID, saml.TimeNow())

	messageXML, err := marshalXML(req)
	if err != nil {
		return "", err
	}
	encoded, err := samlcodec.CompressBase64URLEncode(messageXML)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(destination)
	if err != nil {
		return "", err
	}
	signer := NewRedirectSigner(rsaKeyOrNil(sp.SigningKey), sp.Certificate, "")
	query, err := signer.SignQuery(SAMLRequestParam, encoded, "")
	if err != nil {
		return "", err
	}
	u.RawQuery = query
	return u.String(), nil
}

// GetLogoutRequest decodes and minimally authenticates (issuer must be
// known) an IdP-initiated LogoutRequest.
func (sp *SPController) GetLogoutRequest(encodedRequest string) (*saml.ParsedLogoutRequest, error) {
	raw, err := samlcodec.DecodeURLBase64Inflate(encodedRequest)
	if err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot decode LogoutRequest", err)
	}
	parsed, err := saml.ParseLogoutRequestMessage(raw)
	if err != nil {
		return nil, err
	}
	issuer, err := parsed.Issuer()
	if err != nil {
		return nil, err
	}
	if _, _, _, ok := sp.Store.LookupIdP(issuer); !ok {
		return nil, saml.NewError(saml.ErrUnknownIssuer, "LogoutRequest issuer is not a configured IdP", nil)
	}
	return parsed, nil
}

// SendLogoutResponse builds and returns a signed redirect URL carrying a
// LogoutResponse that answers an IdP-initiated LogoutRequest.
func (sp *SPController) SendLogoutResponse(idpEntityID, inResponseTo string) (string, error) {
	idp, _, _, ok := sp.Store.LookupIdP(idpEntityID)
	if !ok {
		return "", saml.NewError(saml.ErrUnknownIssuer, "no configured IdP with this entity ID", nil)
	}
	destination := sloServiceFor(idp)

	resp, err := saml.NewLogoutResponse(saml.LogoutResponseParams{
		InResponseToID: inResponseTo,
		Destination:    destination,
		SPEntityID:     sp.EntityID,
	})
	if err != nil {
		return "", err
	}

	messageXML, err := marshalXML(resp)
	if err != nil {
		return "", err
	}
	encoded, err := samlcodec.CompressBase64URLEncode(messageXML)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(destination)
	if err != nil {
		return "", err
	}
	signer := NewRedirectSigner(rsaKeyOrNil(sp.SigningKey), sp.Certificate, "")
	query, err := signer.SignQuery(SAMLResponseParam, encoded, "")
	if err != nil {
		return "", err
	}
	u.RawQuery = query
	return u.String(), nil
}

// SendSoapLogoutResponse answers a SOAP-bound LogoutRequest synchronously,
// returning the SOAP-enveloped, signed LogoutResponse body to write back
// on the same HTTP connection.
func (sp *SPController) SendSoapLogoutResponse(inResponseTo string) ([]byte, error) {
	resp, err := saml.NewLogoutResponse(saml.LogoutResponseParams{
		InResponseToID: inResponseTo,
		SPEntityID:     sp.EntityID,
	})
	if err != nil {
		return nil, err
	}
	cfg := sp.effectiveConfig(nil)
	signedXML, err := marshalSigned(resp, sp.SigningKey, sp.Certificate, cfg.SignatureMethod)
	if err != nil {
		return nil, err
	}
	return samlcodec.WrapSOAP(signedXML)
}

// GetLogoutResponse decodes and minimally authenticates a LogoutResponse
// returned from an SP-initiated logout.
func (sp *SPController) GetLogoutResponse(encodedResponse string) (*saml.ParsedLogoutResponse, error) {
	raw, err := samlcodec.DecodeURLBase64Inflate(encodedResponse)
	if err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot decode LogoutResponse", err)
	}
	parsed, err := saml.ParseLogoutResponseMessage(raw)
	if err != nil {
		return nil, err
	}
	issuer, err := parsed.Issuer()
	if err != nil {
		return nil, err
	}
	if _, _, _, ok := sp.Store.LookupIdP(issuer); !ok {
		return nil, saml.NewError(saml.ErrUnknownIssuer, "LogoutResponse issuer is not a configured IdP", nil)
	}
	if inResponseTo, present := parsed.InResponseTo(); present && !sp.Correlation.Contains(issuer, inResponseTo) {
		return nil, saml.NewError(saml.ErrCorrelationMismatch, "LogoutResponse InResponseTo does not match a request this SP issued", nil)
	}
	return parsed, nil
}

// GetExportableMetadata builds this SP's own EntityDescriptor, with
// KeyDescriptors, SingleLogoutServices, and indexed
// AssertionConsumerServices for the POST and Artifact bindings.
func (sp *SPController) GetExportableMetadata(validDuration time.Duration) *saml.EntityDescriptor {
	if validDuration <= 0 {
		validDuration = saml.DefaultValidDuration
	}
	validUntil := saml.RelaxedTime(saml.TimeNow().Add(validDuration))

	authnRequestsSigned := sp.SigningKey != nil
	wantAssertionsSigned := true

	var keyDescriptors []saml.KeyDescriptor
	if sp.Certificate != nil {
		certB64 := base64.StdEncoding.EncodeToString(sp.Certificate.Raw)
		keyDescriptors = append(keyDescriptors, saml.KeyDescriptor{
			Use: "signing",
			KeyInfo: saml.KeyInfo{
				X509Data: saml.X509Data{X509Certificates: []saml.X509Certificate{{Data: certB64}}},
			},
		})
		keyDescriptors = append(keyDescriptors, saml.KeyDescriptor{
			Use: "encryption",
			KeyInfo: saml.KeyInfo{
				X509Data: saml.X509Data{X509Certificates: []saml.X509Certificate{{Data: certB64}}},
			},
		})
	}

	nameIDFormats := []string{saml.PersistentNameIDFormat, saml.TransientNameIDFormat}

	return &saml.EntityDescriptor{
		EntityID:   sp.EntityID,
		ValidUntil: validUntil,
		SPSSODescriptors: []saml.SPSSODescriptor{
			{
				SSODescriptor: saml.SSODescriptor{
					RoleDescriptor: saml.RoleDescriptor{
						ProtocolSupportEnumeration: "urn:oasis:names:tc:SAML:2.0:protocol",
						KeyDescriptors:             keyDescriptors,
					},
					SingleLogoutServices: []saml.Endpoint{
						{Binding: saml.HTTPPostBinding, Location: sp.SloURL.String(), ResponseLocation: sp.SloURL.String()},
					},
					NameIDFormats: nameIDFormats,
				},
				AuthnRequestsSigned:  &authnRequestsSigned,
				WantAssertionsSigned: &wantAssertionsSigned,
				AssertionConsumerServices: []saml.IndexedEndpoint{
					{Binding: saml.HTTPPostBinding, Location: sp.AcsURL.String(), Index: 1},
					{Binding: saml.HTTPArtifactBinding, Location: sp.AcsURL.String(), Index: 2},
				},
			},
		},
	}
}

func (sp *SPController) effectiveConfig(idpConfig *ExtendedConfig) *ExtendedConfig {
	if idpConfig != nil {
		return idpConfig
	}
	if sp.Config != nil {
		return sp.Config
	}
	return &ExtendedConfig{DefaultAuthnContextLabel: "default"}
}

// ssoServiceFor picks the SingleSignOnService to send an AuthnRequest to.
// preferredBinding, if non-empty and advertised, wins; otherwise
// HTTP-Redirect is preferred, falling back to whatever is listed first.
func ssoServiceFor(idp *saml.EntityDescriptor, preferredBinding string) (location, binding string) {
	for _, desc := range idp.IDPSSODescriptors {
		if preferredBinding != "" {
			for _, svc := range desc.SingleSignOnServices {
				if svc.Binding == preferredBinding {
					return svc.Location, svc.Binding
				}
			}
		}
		for _, svc := range desc.SingleSignOnServices {
			if svc.Binding == saml.HTTPRedirectBinding {
				return svc.Location, saml.HTTPRedirectBinding
			}
		}
		for _, svc := range desc.SingleSignOnServices {
			return svc.Location, svc.Binding
		}
	}
	return "", ""
}

func sloServiceFor(idp *saml.EntityDescriptor) string {
	for _, desc := range idp.IDPSSODescriptors {
		for _, svc := range desc.SingleLogoutServices {
			return svc.Location
		}
	}
	return ""
}

func postForm(destination, encodedMessage, relayState, paramName string) []byte {
	relayStateField := ""
	if relayState != "" {
		relayStateField = fmt.Sprintf(`<input type="hidden" name="RelayState" value="%s"/>`, htmlEscape(relayState))
	}
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
<form method="post" action="%s">
<input type="hidden" name="%s" value="%s"/>
%s
<noscript><input type="submit" value="Continue"/></noscript>
</form>
</body>
</html>`, htmlEscape(destination), paramName, htmlEscape(encodedMessage), relayStateField))
}

func htmlEscape(s string) string {
	return html.EscapeString(s)
}

// rsaKeyOrNil narrows a crypto.Signer down to the *rsa.PrivateKey the
// redirect binding signer requires, returning nil if key is not RSA (the
// caller then produces an unsigned redirect, which is valid when the IdP
// does not require signed requests).
func rsaKeyOrNil(key crypto.Signer) *rsa.PrivateKey {
	rsaKey, _ := key.(*rsa.PrivateKey)
	return rsaKey
}
