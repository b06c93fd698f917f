package saml

import (
	"encoding/xml"
	"time"
)

// Binding URNs for the SAML bindings this core supports (SAML Bindings v2.0:
// Redirect, POST, Artifact, and SOAP).
const (
	HTTPRedirectBinding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	HTTPPostBinding      = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	HTTPArtifactBinding  = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Artifact"
	HTTPSOAPBinding      = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
)

// NameID formats used in NameIDPolicy and Subject/NameID.
const (
	UnspecifiedNameIDFormat  = "urn:oasis:names:tc:SAML:2.0:nameid-format:unspecified"
	TransientNameIDFormat    = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
	PersistentNameIDFormat   = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	EmailAddressNameIDFormat = "urn:oasis:names:tc:SAML:2.0:nameid-format:emailAddress"
	EntityNameIDFormat       = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
)

// DefaultValidDuration is how long an exported SP metadata document is
// asserted to be valid for, absent an explicit override.
const DefaultValidDuration = 2 * 24 * time.Hour

// EntitiesDescriptor wraps one or more EntityDescriptor elements, as some
// IDPs publish federation-wide metadata this way rather than a single
// EntityDescriptor. See saml-metadata-2.0-os.pdf §2.3.1.
type EntitiesDescriptor struct {
	XMLName           xml.Name           `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntitiesDescriptor"`
	Name              *string            `xml:"Name,attr,omitempty"`
	ValidUntil        *RelaxedTime       `xml:"validUntil,attr,omitempty"`
	EntityDescriptors []EntityDescriptor `xml:"EntityDescriptor"`
}

// EntityDescriptor represents the SAML EntityDescriptor object, used for
// both SP and IdP metadata. See saml-metadata-2.0-os.pdf §2.3.2.
type EntityDescriptor struct {
	XMLName           xml.Name          `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntityDescriptor"`
	EntityID          string            `xml:"entityID,attr"`
	ValidUntil        RelaxedTime       `xml:"validUntil,attr,omitempty"`
	CacheDuration     time.Duration     `xml:"cacheDuration,attr,omitempty"`
	SPSSODescriptors  []SPSSODescriptor `xml:"SPSSODescriptor"`
	IDPSSODescriptors []IDPSSODescriptor `xml:"IDPSSODescriptor"`
}

// RoleDescriptor is the common portion of SPSSODescriptor/IDPSSODescriptor.
type RoleDescriptor struct {
	ProtocolSupportEnumeration string          `xml:"protocolSupportEnumeration,attr"`
	KeyDescriptors             []KeyDescriptor `xml:"KeyDescriptor"`
	ValidUntil                 *RelaxedTime    `xml:"validUntil,attr,omitempty"`
}

// SSODescriptor is the common portion of SPSSODescriptor/IDPSSODescriptor
// that deals with single logout and name ID formats.
type SSODescriptor struct {
	RoleDescriptor
	ArtifactResolutionServices []IndexedEndpoint `xml:"ArtifactResolutionService"`
	SingleLogoutServices       []Endpoint        `xml:"SingleLogoutService"`
	NameIDFormats              []string          `xml:"NameIDFormat"`
}

// SPSSODescriptor represents the SAML SPSSODescriptorType object.
type SPSSODescriptor struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:metadata SPSSODescriptor"`
	SSODescriptor
	AuthnRequestsSigned       *bool             `xml:"AuthnRequestsSigned,attr,omitempty"`
	WantAssertionsSigned      *bool             `xml:"WantAssertionsSigned,attr,omitempty"`
	AssertionConsumerServices []IndexedEndpoint `xml:"AssertionConsumerService"`
}

// IDPSSODescriptor represents the SAML IDPSSODescriptorType object.
type IDPSSODescriptor struct {
	XMLName xml.Name `xml:"urn:oasis:names:tc:SAML:2.0:metadata IDPSSODescriptor"`
	SSODescriptor
	WantAuthnRequestsSigned  *bool      `xml:"WantAuthnRequestsSigned,attr,omitempty"`
	SingleSignOnServices     []Endpoint `xml:"SingleSignOnService"`
}

// Endpoint represents the SAML EndpointType object.
type Endpoint struct {
	Binding          string `xml:"Binding,attr"`
	Location         string `xml:"Location,attr"`
	ResponseLocation string `xml:"ResponseLocation,attr,omitempty"`
}

// IndexedEndpoint represents the SAML IndexedEndpointType object.
type IndexedEndpoint struct {
	Binding          string `xml:"Binding,attr"`
	Location         string `xml:"Location,attr"`
	ResponseLocation string `xml:"ResponseLocation,attr,omitempty"`
	Index            int    `xml:"index,attr"`
	IsDefault        *bool  `xml:"isDefault,attr,omitempty"`
}

// KeyDescriptor represents the XML-DSig KeyDescriptor object.
type KeyDescriptor struct {
	Use               string             `xml:"use,attr,omitempty"`
	KeyInfo           KeyInfo            `xml:"http://www.w3.org/2000/09/xmldsig# KeyInfo"`
	EncryptionMethods []EncryptionMethod `xml:"EncryptionMethod,omitempty"`
}

// EncryptionMethod represents the XML-ENC EncryptionMethod object. Carried
// in exported metadata for completeness; encrypted assertions are a
// Non-goal so the SP never generates an EncryptedKey.
type EncryptionMethod struct {
	Algorithm string `xml:"Algorithm,attr"`
}

// KeyInfo represents the XML-DSig KeyInfo object, restricted to the single
// X509Data form this core reads and writes.
type KeyInfo struct {
	XMLName  xml.Name `xml:"http://www.w3.org/2000/09/xmldsig# KeyInfo"`
	X509Data X509Data `xml:"X509Data"`
}

// X509Data holds one or more base64 DER certificates.
type X509Data struct {
	X509Certificates []X509Certificate `xml:"X509Certificate"`
}

// X509Certificate holds a single base64 DER certificate.
type X509Certificate struct {
	Data string `xml:",chardata"`
}

// firstSet returns the first non-empty string argument.
func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
