package samlsp

import (
	"crypto/x509"
	"encoding/base64"
	"strings"
	"time"

	"github.com/fedletgo/saml"
)

// Validator implements the fixed ordering of checks every received
// AuthnResponse must pass before its assertion is trusted (§4.6, §8):
// signature presence/validity, known issuer, success status, validity
// window, audience restriction, circle of trust membership, and
// InResponseTo correlation. Each step short-circuits with the specific
// ErrorKind from §7 so callers can distinguish failure causes.
type Validator struct {
	store           *MetadataStore
	correlation     *RequestCorrelationCache
	spEntityID      string
	clockSkew       time.Duration
	allowUnsolicited bool
}

// NewValidator builds a Validator. clockSkew bounds how far a Condition's
// NotBefore/NotOnOrAfter may diverge from this SP's clock (§4.6).
// allowUnsolicited permits a Response with no InResponseTo, for
// IdP-initiated SSO.
func NewValidator(store *MetadataStore, correlation *RequestCorrelationCache, spEntityID string, clockSkew time.Duration, allowUnsolicited bool) *Validator {
	return &Validator{
		store:            store,
		correlation:      correlation,
		spEntityID:       spEntityID,
		clockSkew:        clockSkew,
		allowUnsolicited: allowUnsolicited,
	}
}

// ValidatedAssertion is the trusted, caller-facing result of a successful
// validation (§4.6 "surfaces a trusted principal").
type ValidatedAssertion struct {
	Issuer               string
	NameID               saml.NameID
	SessionIndex         string
	AuthnInstant         time.Time
	AuthnContextClassRef string
	Attributes           []saml.AttributeStatement
}

// Validate runs the full seven-step check over parsed and returns a
// ValidatedAssertion on success. The correlation entry named by
// InResponseTo, if any, is removed exactly once on exit regardless of
// which step failed (§4.6 invariant (d), §4.10): a response that fails
// audience or time-window checks must not leak its pending request.
func (v *Validator) Validate(parsed *saml.ParsedAuthnResponse) (*ValidatedAssertion, error) {
	// Step 1: signature gate. At least one of Response or Assertion must
	// carry a valid signature from a certificate this SP trusts for the
	// claimed issuer. Which issuer to trust is resolved in step 2, so we
	// first read the issuer unauthenticated and treat it as provisional
	// until its signature checks out.
	issuer, err := parsed.Issuer()
	if err != nil {
		return nil, err
	}

	if inResponseTo, present := parsed.InResponseTo(); present {
		defer v.correlation.Remove(issuer, inResponseTo)
	}

	// Step 2: issuer known.
	idpMetadata, cot, _, ok := v.store.LookupIdP(issuer)
	if !ok {
		return nil, saml.NewError(saml.ErrUnknownIssuer, "response issuer is not a configured IdP", nil)
	}

	if err := v.verifySignature(parsed, idpMetadata); err != nil {
		return nil, err
	}

	// Step 3: status.
	statusCode, err := parsed.StatusCode()
	if err != nil {
		return nil, err
	}
	if statusCode != saml.StatusSuccess {
		return nil, saml.NewError(saml.ErrResponderFailure, "IdP reported a non-success status: "+statusCode, nil)
	}

	// Step 4: validity window.
	if err := v.checkTimeWindow(parsed); err != nil {
		return nil, err
	}

	// Step 5: audience restriction.
	audiences, err := parsed.ConditionAudiences()
	if err != nil {
		return nil, err
	}
	if !containsString(audiences, v.spEntityID) {
		return nil, saml.NewError(saml.ErrAudienceMismatch, "this SP's entity ID is not in the assertion's AudienceRestriction", nil)
	}

	// Step 6: circle of trust.
	if !cot.Contains(issuer) {
		return nil, saml.NewError(saml.ErrNotInCircleOfTrust, "issuer is not a member of the required circle of trust", nil)
	}

	// Step 7: InResponseTo correlation.
	if err := v.checkCorrelation(parsed, issuer); err != nil {
		return nil, err
	}

	return v.buildValidated(parsed, issuer)
}

// verifySignature implements the "strongest signature wins" tie-break: if
// both the Response and its Assertion are signed, either being valid is
// sufficient, but an invalid Response signature does not disqualify a
// validly signed Assertion and vice versa. At least one must be both
// present and valid.
func (v *Validator) verifySignature(parsed *saml.ParsedAuthnResponse, idpMetadata *saml.EntityDescriptor) error {
	responseSig := parsed.ResponseSignatureElement()
	assertionSig := parsed.AssertionSignatureElement()

	if responseSig == nil && assertionSig == nil {
		return saml.NewError(saml.ErrSignatureMissing, "neither the Response nor its Assertion is signed", nil)
	}

	certs, err := signingCertificatesFor(idpMetadata)
	if err != nil {
		return err
	}
	verifier := NewXMLVerifier(certs)

	var responseErr, assertionErr error
	if responseSig != nil {
		responseID, idErr := parsed.ID()
		if idErr != nil {
			responseErr = idErr
		} else {
			_, responseErr = verifier.VerifyElement(parsed.Document().Root(), responseID)
		}
		if responseErr == nil {
			return nil
		}
	}
	if assertionSig != nil {
		assertionEl := parsed.Document().Root().FindElement("./Assertion")
		_, assertionErr = verifier.VerifyElement(assertionEl, parsed.AssertionID())
		if assertionErr == nil {
			return nil
		}
	}

	if assertionErr != nil {
		return assertionErr
	}
	return responseErr
}

// signingCertificatesFor extracts every KeyDescriptor[use=signing] (or
// unspecified use) X.509 certificate from an IdP's IDPSSODescriptor,
// trimming incidental whitespace IdPs sometimes wrap their base64 in
// (§4.5 "whitespace-normalized certificate comparison").
func signingCertificatesFor(idp *saml.EntityDescriptor) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, desc := range idp.IDPSSODescriptors {
		for _, kd := range desc.KeyDescriptors {
			if kd.Use != "" && kd.Use != "signing" {
				continue
			}
			for _, xc := range kd.KeyInfo.X509Data.X509Certificates {
				cert, err := parseCertBase64(xc.Data)
				if err != nil {
					return nil, saml.NewError(saml.ErrConfiguration, "IdP metadata contains an invalid certificate", err)
				}
				certs = append(certs, cert)
			}
		}
	}
	if len(certs) == 0 {
		return nil, saml.NewError(saml.ErrConfiguration, "IdP metadata has no signing certificate", nil)
	}
	return certs, nil
}

func parseCertBase64(data string) (*x509.Certificate, error) {
	cleaned := strings.Join(strings.Fields(data), "")
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// checkTimeWindow enforces NotBefore <= now < NotOnOrAfter, widened by
// clockSkew on both ends (§4.6, §8 property 3).
func (v *Validator) checkTimeWindow(parsed *saml.ParsedAuthnResponse) error {
	notBefore, err := parsed.ConditionNotBefore()
	if err != nil {
		return err
	}
	notOnOrAfter, err := parsed.ConditionNotOnOrAfter()
	if err != nil {
		return err
	}

	now := saml.TimeNow()
	if now.Add(v.clockSkew).Before(notBefore.ToTime()) {
		return saml.NewError(saml.ErrAssertionExpired, "assertion is not yet valid (NotBefore)", nil)
	}
	if !now.Add(-v.clockSkew).Before(notOnOrAfter.ToTime()) {
		return saml.NewError(saml.ErrAssertionExpired, "assertion has expired (NotOnOrAfter)", nil)
	}
	return nil
}

// checkCorrelation verifies InResponseTo against requests this SP actually
// issued to issuer, unless this is an allowed unsolicited response.
func (v *Validator) checkCorrelation(parsed *saml.ParsedAuthnResponse, issuer string) error {
	inResponseTo, present := parsed.InResponseTo()
	if !present {
		if v.allowUnsolicited {
			return nil
		}
		return saml.NewError(saml.ErrCorrelationMismatch, "unsolicited response received but IdP-initiated SSO is not allowed", nil)
	}
	if !v.correlation.Contains(issuer, inResponseTo) {
		return saml.NewError(saml.ErrCorrelationMismatch, "InResponseTo does not match a request this SP issued", nil)
	}
	v.correlation.Remove(issuer, inResponseTo)
	return nil
}

func (v *Validator) buildValidated(parsed *saml.ParsedAuthnResponse, issuer string) (*ValidatedAssertion, error) {
	nameID, err := parsed.SubjectNameID()
	if err != nil {
		return nil, err
	}

	result := &ValidatedAssertion{
		Issuer: issuer,
		NameID: nameID,
	}
	if idx, ok := parsed.SessionIndex(); ok {
		result.SessionIndex = idx
	}
	if instant, ok := parsed.AuthnInstant(); ok {
		result.AuthnInstant = instant.ToTime()
	}
	if classRef, ok := parsed.AuthnContextClassRef(); ok {
		result.AuthnContextClassRef = classRef
	}
	if attrs, ok := parsed.AttributeStatements(); ok {
		result.Attributes = attrs
	}
	return result, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
