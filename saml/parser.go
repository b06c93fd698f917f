package saml

import (
	"bytes"
	"encoding/xml"

	"github.com/beevik/etree"
	xrv "github.com/mattermost/xml-roundtrip-validator"
)

// signatureNS is the XML-DSig namespace used to locate enveloped Signature
// elements with etree, independent of how the document's author chose to
// prefix it.
const signatureNS = "http://www.w3.org/2000/09/xmldsig#"

// parseDocument validates the raw bytes against XML round-trip attacks
// using xrv.Validate before any other parsing runs, and returns a
// lazily-queryable etree.Document alongside it.
func parseDocument(raw []byte) (*etree.Document, error) {
	if len(raw) == 0 {
		return nil, NewError(ErrMalformedMessage, "empty message body", nil)
	}
	if err := xrv.Validate(bytes.NewReader(raw)); err != nil {
		return nil, NewError(ErrMalformedMessage, "document failed XML round-trip validation", err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot parse XML", err)
	}
	return doc, nil
}

// enveloped returns the first Signature element that is a direct child of
// el (enveloped signatures only; nested signatures inside descendants are
// located separately by callers that need them, e.g. an Assertion's own
// signature).
func enveloped(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if child.Tag == "Signature" && child.NamespaceURI() == signatureNS {
			return child
		}
	}
	return nil
}

// ParsedAuthnResponse exposes typed accessors over a received SAML Response,
// required fields failing with ErrMalformedMessage when absent.
type ParsedAuthnResponse struct {
	Raw      []byte
	doc      *etree.Document
	response *Response
}

// ParseAuthnResponse parses a decoded (base64/deflate already undone)
// SAML Response document.
func ParseAuthnResponse(raw []byte) (*ParsedAuthnResponse, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	resp := &Response{}
	if err := xml.Unmarshal(raw, resp); err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot unmarshal Response", err).WithRawXML(raw)
	}
	return &ParsedAuthnResponse{Raw: raw, doc: doc, response: resp}, nil
}

// ID returns the Response's ID attribute. Required.
func (p *ParsedAuthnResponse) ID() (string, error) {
	if p.response.ID == "" {
		return "", NewError(ErrMalformedMessage, "Response missing ID", nil)
	}
	return p.response.ID, nil
}

// Issuer returns the Response's Issuer value. Required.
func (p *ParsedAuthnResponse) Issuer() (string, error) {
	if p.response.Issuer.Value == "" {
		return "", NewError(ErrMalformedMessage, "Response missing Issuer", nil)
	}
	return p.response.Issuer.Value, nil
}

// StatusCode returns the Response's status code URI. Required.
func (p *ParsedAuthnResponse) StatusCode() (string, error) {
	if p.response.Status.StatusCode.Value == "" {
		return "", NewError(ErrMalformedMessage, "Response missing StatusCode", nil)
	}
	return p.response.Status.StatusCode.Value, nil
}

// SubjectNameID returns the Assertion/Subject/NameID value, format, and
// name qualifier. Required.
func (p *ParsedAuthnResponse) SubjectNameID() (NameID, error) {
	if p.response.Assertion == nil || p.response.Assertion.Subject == nil || p.response.Assertion.Subject.NameID == nil {
		return NameID{}, NewError(ErrMalformedMessage, "Response missing Assertion/Subject/NameID", nil)
	}
	return *p.response.Assertion.Subject.NameID, nil
}

// ConditionNotBefore returns the Assertion's Conditions/@NotBefore. Required.
func (p *ParsedAuthnResponse) ConditionNotBefore() (RelaxedTime, error) {
	if p.response.Assertion == nil || p.response.Assertion.Conditions == nil {
		return RelaxedTime{}, NewError(ErrMalformedMessage, "Response missing Conditions", nil)
	}
	return p.response.Assertion.Conditions.NotBefore, nil
}

// ConditionNotOnOrAfter returns the Assertion's Conditions/@NotOnOrAfter. Required.
func (p *ParsedAuthnResponse) ConditionNotOnOrAfter() (RelaxedTime, error) {
	if p.response.Assertion == nil || p.response.Assertion.Conditions == nil {
		return RelaxedTime{}, NewError(ErrMalformedMessage, "Response missing Conditions", nil)
	}
	return p.response.Assertion.Conditions.NotOnOrAfter, nil
}

// ConditionAudiences returns the flattened list of every Audience value
// across all AudienceRestriction elements. Required (non-empty).
func (p *ParsedAuthnResponse) ConditionAudiences() ([]string, error) {
	if p.response.Assertion == nil || p.response.Assertion.Conditions == nil {
		return nil, NewError(ErrMalformedMessage, "Response missing Conditions", nil)
	}
	var audiences []string
	for _, restriction := range p.response.Assertion.Conditions.AudienceRestrictions {
		for _, aud := range restriction.Audiences {
			audiences = append(audiences, aud.Value)
		}
	}
	if len(audiences) == 0 {
		return nil, NewError(ErrMalformedMessage, "Response has no Audience", nil)
	}
	return audiences, nil
}

// InResponseTo returns the Response's InResponseTo attribute and whether it
// was present. Optional -- its absence is legal for IDP-initiated SSO.
func (p *ParsedAuthnResponse) InResponseTo() (string, bool) {
	return p.response.InResponseTo, p.response.InResponseTo != ""
}

// SessionIndex returns the first AuthnStatement's SessionIndex. Optional.
func (p *ParsedAuthnResponse) SessionIndex() (string, bool) {
	if p.response.Assertion == nil || len(p.response.Assertion.AuthnStatements) == 0 {
		return "", false
	}
	idx := p.response.Assertion.AuthnStatements[0].SessionIndex
	return idx, idx != ""
}

// AuthnInstant returns the first AuthnStatement's AuthnInstant. Optional.
func (p *ParsedAuthnResponse) AuthnInstant() (RelaxedTime, bool) {
	if p.response.Assertion == nil || len(p.response.Assertion.AuthnStatements) == 0 {
		return RelaxedTime{}, false
	}
	return p.response.Assertion.AuthnStatements[0].AuthnInstant, true
}

// AuthnContextClassRef returns the first AuthnStatement's AuthnContextClassRef. Optional.
func (p *ParsedAuthnResponse) AuthnContextClassRef() (string, bool) {
	if p.response.Assertion == nil || len(p.response.Assertion.AuthnStatements) == 0 {
		return "", false
	}
	ref := p.response.Assertion.AuthnStatements[0].AuthnContext.AuthnContextClassRef
	return ref, ref != ""
}

// AttributeStatements returns every AttributeStatement on the Assertion. Optional.
func (p *ParsedAuthnResponse) AttributeStatements() ([]AttributeStatement, bool) {
	if p.response.Assertion == nil || len(p.response.Assertion.AttributeStatements) == 0 {
		return nil, false
	}
	return p.response.Assertion.AttributeStatements, true
}

// ResponseSignatureElement returns the enveloped Signature element on the
// top-level Response, if any. Optional.
func (p *ParsedAuthnResponse) ResponseSignatureElement() *etree.Element {
	return enveloped(p.doc.Root())
}

// AssertionSignatureElement returns the enveloped Signature element nested
// inside the Response's Assertion, if any. Optional.
func (p *ParsedAuthnResponse) AssertionSignatureElement() *etree.Element {
	root := p.doc.Root()
	if root == nil {
		return nil
	}
	assertionEl := root.FindElement("./Assertion")
	return enveloped(assertionEl)
}

// AssertionID returns the Assertion's ID attribute ("" when there is no
// Assertion); used by the Validator/XmlVerifier to build the expected
// `#<ID>` reference for an Assertion-level signature.
func (p *ParsedAuthnResponse) AssertionID() string {
	if p.response.Assertion == nil {
		return ""
	}
	return p.response.Assertion.ID
}

// Response returns the decoded protocol struct for callers that need full
// access (e.g. to surface a validated AuthnResponse to the host).
func (p *ParsedAuthnResponse) Response() *Response { return p.response }

// Document returns the underlying etree document for signature verification.
func (p *ParsedAuthnResponse) Document() *etree.Document { return p.doc }

// ParsedArtifactResponse exposes typed accessors over a received
// ArtifactResponse.
type ParsedArtifactResponse struct {
	Raw      []byte
	doc      *etree.Document
	artifact *ArtifactResponse
}

// ParseArtifactResponseMessage parses a decoded ArtifactResponse document.
func ParseArtifactResponseMessage(raw []byte) (*ParsedArtifactResponse, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	ar := &ArtifactResponse{}
	if err := xml.Unmarshal(raw, ar); err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot unmarshal ArtifactResponse", err).WithRawXML(raw)
	}
	return &ParsedArtifactResponse{Raw: raw, doc: doc, artifact: ar}, nil
}

// InResponseTo returns the ArtifactResponse's InResponseTo. Required.
func (p *ParsedArtifactResponse) InResponseTo() (string, error) {
	if p.artifact.InResponseTo == "" {
		return "", NewError(ErrMalformedMessage, "ArtifactResponse missing InResponseTo", nil)
	}
	return p.artifact.InResponseTo, nil
}

// StatusCode returns the ArtifactResponse's status code URI. Required.
func (p *ParsedArtifactResponse) StatusCode() (string, error) {
	if p.artifact.Status.StatusCode.Value == "" {
		return "", NewError(ErrMalformedMessage, "ArtifactResponse missing StatusCode", nil)
	}
	return p.artifact.Status.StatusCode.Value, nil
}

// EmbeddedAuthnResponse returns a ParsedAuthnResponse for the Response
// embedded in the ArtifactResponse's Body. Required.
func (p *ParsedArtifactResponse) EmbeddedAuthnResponse() (*ParsedAuthnResponse, error) {
	if p.artifact.Response == nil {
		return nil, NewError(ErrMalformedMessage, "ArtifactResponse missing embedded Response", nil)
	}
	root := p.doc.Root()
	var embeddedDoc *etree.Document
	if root != nil {
		if respEl := root.FindElement("./Response"); respEl != nil {
			embeddedDoc = etree.NewDocument()
			embeddedDoc.SetRoot(respEl.Copy())
		}
	}
	if embeddedDoc == nil {
		embeddedDoc = etree.NewDocument()
	}
	raw, err := embeddedDoc.WriteToBytes()
	if err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot serialize embedded Response", err)
	}
	return &ParsedAuthnResponse{Raw: raw, doc: embeddedDoc, response: p.artifact.Response}, nil
}

// SignatureElement returns the enveloped Signature on the ArtifactResponse
// itself. Optional.
func (p *ParsedArtifactResponse) SignatureElement() *etree.Element {
	return enveloped(p.doc.Root())
}

// ID returns the ArtifactResponse's own ID attribute, used as the reference
// ID when verifying its own enveloped signature.
func (p *ParsedArtifactResponse) ID() string { return p.artifact.ID }

// ParsedLogoutRequest exposes typed accessors over a received
// LogoutRequest.
type ParsedLogoutRequest struct {
	Raw     []byte
	doc     *etree.Document
	request *LogoutRequest
}

// ParseLogoutRequestMessage parses a decoded LogoutRequest document.
func ParseLogoutRequestMessage(raw []byte) (*ParsedLogoutRequest, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	lr := &LogoutRequest{}
	if err := xml.Unmarshal(raw, lr); err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot unmarshal LogoutRequest", err).WithRawXML(raw)
	}
	return &ParsedLogoutRequest{Raw: raw, doc: doc, request: lr}, nil
}

// ID returns the LogoutRequest's ID attribute. Required.
func (p *ParsedLogoutRequest) ID() (string, error) {
	if p.request.ID == "" {
		return "", NewError(ErrMalformedMessage, "LogoutRequest missing ID", nil)
	}
	return p.request.ID, nil
}

// Issuer returns the LogoutRequest's Issuer value. Required.
func (p *ParsedLogoutRequest) Issuer() (string, error) {
	if p.request.Issuer.Value == "" {
		return "", NewError(ErrMalformedMessage, "LogoutRequest missing Issuer", nil)
	}
	return p.request.Issuer.Value, nil
}

// NotOnOrAfter returns the LogoutRequest's NotOnOrAfter, if present. Optional.
func (p *ParsedLogoutRequest) NotOnOrAfter() (RelaxedTime, bool) {
	if p.request.NotOnOrAfter == nil {
		return RelaxedTime{}, false
	}
	return *p.request.NotOnOrAfter, true
}

// SessionIndex returns the LogoutRequest's SessionIndex, if present. Optional.
func (p *ParsedLogoutRequest) SessionIndex() (string, bool) {
	return p.request.SessionIndex, p.request.SessionIndex != ""
}

// NameID returns the LogoutRequest's NameID.
func (p *ParsedLogoutRequest) NameID() NameID { return p.request.NameID }

// SignatureElement returns the enveloped Signature on the LogoutRequest. Optional.
func (p *ParsedLogoutRequest) SignatureElement() *etree.Element {
	return enveloped(p.doc.Root())
}

// Request returns the decoded protocol struct.
func (p *ParsedLogoutRequest) Request() *LogoutRequest { return p.request }

// ParsedLogoutResponse exposes typed accessors over a received
// LogoutResponse.
type ParsedLogoutResponse struct {
	Raw      []byte
	doc      *etree.Document
	response *LogoutResponse
}

// ParseLogoutResponseMessage parses a decoded LogoutResponse document.
func ParseLogoutResponseMessage(raw []byte) (*ParsedLogoutResponse, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}
	lr := &LogoutResponse{}
	if err := xml.Unmarshal(raw, lr); err != nil {
		return nil, NewError(ErrMalformedMessage, "cannot unmarshal LogoutResponse", err).WithRawXML(raw)
	}
	return &ParsedLogoutResponse{Raw: raw, doc: doc, response: lr}, nil
}

// ID returns the LogoutResponse's ID attribute. Required.
func (p *ParsedLogoutResponse) ID() (string, error) {
	if p.response.ID == "" {
		return "", NewError(ErrMalformedMessage, "LogoutResponse missing ID", nil)
	}
	return p.response.ID, nil
}

// Issuer returns the LogoutResponse's Issuer value. Required.
func (p *ParsedLogoutResponse) Issuer() (string, error) {
	if p.response.Issuer.Value == "" {
		return "", NewError(ErrMalformedMessage, "LogoutResponse missing Issuer", nil)
	}
	return p.response.Issuer.Value, nil
}

// StatusCode returns the LogoutResponse's status code URI. Required.
func (p *ParsedLogoutResponse) StatusCode() (string, error) {
	if p.response.Status.StatusCode.Value == "" {
		return "", NewError(ErrMalformedMessage, "LogoutResponse missing StatusCode", nil)
	}
	return p.response.Status.StatusCode.Value, nil
}

// InResponseTo returns the LogoutResponse's InResponseTo, if present. Optional.
func (p *ParsedLogoutResponse) InResponseTo() (string, bool) {
	return p.response.InResponseTo, p.response.InResponseTo != ""
}

// SignatureElement returns the enveloped Signature on the LogoutResponse. Optional.
func (p *ParsedLogoutResponse) SignatureElement() *etree.Element {
	return enveloped(p.doc.Root())
}
