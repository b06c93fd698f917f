package saml

import "encoding/xml"

// Status codes (SAMLCore §3.2.2.2); this core only ever distinguishes
// Success from "anything else", surfacing the raw status to the host.
const (
	StatusSuccess = "urn:oasis:names:tc:SAML:2.0:status:Success"
)

// Issuer represents the SAML Issuer element, identifying the entity that
// produced a message.
type Issuer struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion Issuer"`
	Format  string   `xml:"Format,attr,omitempty"`
	Value   string   `xml:",chardata"`
}

// NameID represents the SAML NameID element identifying a subject.
type NameID struct {
	XMLName         xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:assertion NameID"`
	Format          string   `xml:"Format,attr,omitempty"`
	NameQualifier   string   `xml:"NameQualifier,attr,omitempty"`
	SPNameQualifier string   `xml:"SPNameQualifier,attr,omitempty"`
	Value           string   `xml:",chardata"`
}

// NameIDPolicy represents the SAML NameIDPolicy element of an AuthnRequest.
type NameIDPolicy struct {
	Format      string `xml:"Format,attr,omitempty"`
	AllowCreate *bool  `xml:"AllowCreate,attr,omitempty"`
}

// RequestedAuthnContext represents the SAML RequestedAuthnContext element.
type RequestedAuthnContext struct {
	Comparison            string   `xml:"Comparison,attr,omitempty"`
	AuthnContextClassRefs []string `xml:"urn:oasis:names:tc:SAML:2.0:assertion AuthnContextClassRef"`
}

// StatusCode represents the SAML StatusCode element.
type StatusCode struct {
	Value string `xml:"Value,attr"`
}

// Status represents the SAML Status element.
type Status struct {
	StatusCode    StatusCode `xml:"StatusCode"`
	StatusMessage string     `xml:"StatusMessage,omitempty"`
}

// AuthnRequest represents a SAML AuthnRequest protocol message.
type AuthnRequest struct {
	XMLName                     xml.Name               `xml:"urn:oasis:names:tc:SAML:2.0:protocol AuthnRequest"`
	ID                          string                 `xml:"ID,attr"`
	Version                     string                 `xml:"Version,attr"`
	IssueInstant                RelaxedTime            `xml:"IssueInstant,attr"`
	Destination                 string                 `xml:"Destination,attr,omitempty"`
	ProtocolBinding             string                 `xml:"ProtocolBinding,attr,omitempty"`
	AssertionConsumerServiceURL string                 `xml:"AssertionConsumerServiceURL,attr,omitempty"`
	ForceAuthn                  *bool                  `xml:"ForceAuthn,attr,omitempty"`
	IsPassive                   *bool                  `xml:"IsPassive,attr,omitempty"`
	Issuer                      Issuer                 `xml:"Issuer"`
	Signature                   *SignatureElement      `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	NameIDPolicy                *NameIDPolicy          `xml:"NameIDPolicy,omitempty"`
	RequestedAuthnContext       *RequestedAuthnContext `xml:"RequestedAuthnContext,omitempty"`
}

// LogoutRequest represents a SAML LogoutRequest protocol message.
type LogoutRequest struct {
	XMLName       xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutRequest"`
	ID            string            `xml:"ID,attr"`
	Version       string            `xml:"Version,attr"`
	IssueInstant  RelaxedTime       `xml:"IssueInstant,attr"`
	Destination   string            `xml:"Destination,attr,omitempty"`
	NotOnOrAfter  *RelaxedTime      `xml:"NotOnOrAfter,attr,omitempty"`
	Issuer        Issuer            `xml:"Issuer"`
	Signature     *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	NameID        NameID            `xml:"NameID"`
	SessionIndex  string            `xml:"SessionIndex"`
}

// LogoutResponse represents a SAML LogoutResponse protocol message.
type LogoutResponse struct {
	XMLName      xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:protocol LogoutResponse"`
	ID           string            `xml:"ID,attr"`
	InResponseTo string            `xml:"InResponseTo,attr,omitempty"`
	Version      string            `xml:"Version,attr"`
	IssueInstant RelaxedTime       `xml:"IssueInstant,attr"`
	Destination  string            `xml:"Destination,attr,omitempty"`
	Issuer       Issuer            `xml:"Issuer"`
	Signature    *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	Status       Status            `xml:"Status"`
}

// Response represents a SAML Response protocol message carrying an
// Assertion.
type Response struct {
	XMLName      xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:protocol Response"`
	ID           string            `xml:"ID,attr"`
	InResponseTo string            `xml:"InResponseTo,attr,omitempty"`
	Version      string            `xml:"Version,attr"`
	IssueInstant RelaxedTime       `xml:"IssueInstant,attr"`
	Destination  string            `xml:"Destination,attr,omitempty"`
	Issuer       Issuer            `xml:"Issuer"`
	Signature    *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	Status       Status            `xml:"Status"`
	Assertion    *Assertion        `xml:"Assertion,omitempty"`
}

// Assertion represents a SAML Assertion element.
type Assertion struct {
	XMLName            xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:assertion Assertion"`
	ID                 string            `xml:"ID,attr"`
	Version            string            `xml:"Version,attr"`
	IssueInstant       RelaxedTime       `xml:"IssueInstant,attr"`
	Issuer             Issuer            `xml:"Issuer"`
	Signature          *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	Subject            *Subject          `xml:"Subject,omitempty"`
	Conditions         *Conditions       `xml:"Conditions,omitempty"`
	AuthnStatements    []AuthnStatement  `xml:"AuthnStatement,omitempty"`
	AttributeStatements []AttributeStatement `xml:"AttributeStatement,omitempty"`
}

// Subject represents the SAML Subject element.
type Subject struct {
	NameID                  *NameID                  `xml:"NameID,omitempty"`
	SubjectConfirmations    []SubjectConfirmation    `xml:"SubjectConfirmation,omitempty"`
}

// SubjectConfirmation represents the SAML SubjectConfirmation element.
type SubjectConfirmation struct {
	Method                  string                       `xml:"Method,attr"`
	SubjectConfirmationData *SubjectConfirmationData     `xml:"SubjectConfirmationData,omitempty"`
}

// SubjectConfirmationData represents the SAML SubjectConfirmationData element.
type SubjectConfirmationData struct {
	InResponseTo string      `xml:"InResponseTo,attr,omitempty"`
	NotOnOrAfter RelaxedTime `xml:"NotOnOrAfter,attr,omitempty"`
	Recipient    string      `xml:"Recipient,attr,omitempty"`
}

// Conditions represents the SAML Conditions element.
type Conditions struct {
	NotBefore            RelaxedTime           `xml:"NotBefore,attr,omitempty"`
	NotOnOrAfter         RelaxedTime           `xml:"NotOnOrAfter,attr,omitempty"`
	AudienceRestrictions []AudienceRestriction `xml:"AudienceRestriction,omitempty"`
}

// AudienceRestriction represents the SAML AudienceRestriction element.
type AudienceRestriction struct {
	Audiences []Audience `xml:"Audience"`
}

// Audience represents the SAML Audience element.
type Audience struct {
	Value string `xml:",chardata"`
}

// AuthnStatement represents the SAML AuthnStatement element.
type AuthnStatement struct {
	AuthnInstant    RelaxedTime     `xml:"AuthnInstant,attr"`
	SessionIndex    string          `xml:"SessionIndex,attr,omitempty"`
	AuthnContext    AuthnContext    `xml:"AuthnContext"`
}

// AuthnContext represents the SAML AuthnContext element.
type AuthnContext struct {
	AuthnContextClassRef string `xml:"AuthnContextClassRef,omitempty"`
}

// AttributeStatement represents the SAML AttributeStatement element.
type AttributeStatement struct {
	Attributes []Attribute `xml:"Attribute"`
}

// Attribute represents the SAML Attribute element.
type Attribute struct {
	FriendlyName string           `xml:"FriendlyName,attr,omitempty"`
	Name         string           `xml:"Name,attr"`
	NameFormat   string           `xml:"NameFormat,attr,omitempty"`
	Values       []AttributeValue `xml:"AttributeValue"`
}

// AttributeValue represents the SAML AttributeValue element.
type AttributeValue struct {
	Type  string `xml:"http://www.w3.org/2001/XMLSchema-instance type,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Get returns the first value of the attribute whose Name or FriendlyName
// matches name, and whether it was found.
func (s AttributeStatement) Get(name string) (string, bool) {
	for _, attr := range s.Attributes {
		if attr.Name == name || attr.FriendlyName == name {
			if len(attr.Values) == 0 {
				return "", true
			}
			return attr.Values[0].Value, true
		}
	}
	return "", false
}

// ArtifactResolve represents the SAML ArtifactResolve protocol message sent
// over the back channel to dereference an artifact.
type ArtifactResolve struct {
	XMLName      xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:protocol ArtifactResolve"`
	ID           string            `xml:"ID,attr"`
	Version      string            `xml:"Version,attr"`
	IssueInstant RelaxedTime       `xml:"IssueInstant,attr"`
	Destination  string            `xml:"Destination,attr,omitempty"`
	Issuer       Issuer            `xml:"Issuer"`
	Signature    *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	Artifact     string            `xml:"Artifact"`
}

// ArtifactResponse represents the SAML ArtifactResponse protocol message
// returned by the IdP's ArtifactResolutionService.
type ArtifactResponse struct {
	XMLName      xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:protocol ArtifactResponse"`
	ID           string            `xml:"ID,attr"`
	InResponseTo string            `xml:"InResponseTo,attr,omitempty"`
	Version      string            `xml:"Version,attr"`
	IssueInstant RelaxedTime       `xml:"IssueInstant,attr"`
	Issuer       Issuer            `xml:"Issuer"`
	Signature    *SignatureElement `xml:"http://www.w3.org/2000/09/xmldsig# Signature,omitempty"`
	Status       Status            `xml:"Status"`
	Response     *Response         `xml:"Response,omitempty"`
}

// SignatureElement is a minimal representation of a ds:Signature element
// sufficient for xml.Marshal/Unmarshal round-tripping; the real signing and
// verification logic works directly on the etree representation in
// samlsp, not through this struct.
type SignatureElement struct {
	XMLName xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# Signature"`
	InnerXML string  `xml:",innerxml"`
}
