package samlsp

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/fedletgo/saml"
)

// XMLSigner produces enveloped XML-DSig signatures over outgoing SP
// messages (AuthnRequest, LogoutRequest, LogoutResponse) using exclusive
// canonicalization, per §4.5.
type XMLSigner struct {
	ctx *dsig.SigningContext
}

// NewXMLSigner builds a signer from the SP's signing key and certificate.
// signatureMethod selects the signing algorithm (defaults to RSA-SHA256 if
// empty). goxmldsig's SigningContext drives both the SignatureMethod and
// the Reference digest from one crypto.Hash, so ExtendedConfig.DigestMethod
// (§3) is not independently adjustable here; choosing a SignatureMethod
// implies its paired digest (RSA-SHA256 implies SHA-256, RSA-SHA1 implies
// SHA-1), which is also what the default SHA-1 digest historically paired
// with the original RSA-SHA1-only deployment.
func NewXMLSigner(key crypto.Signer, cert *x509.Certificate, signatureMethod string) (*XMLSigner, error) {
	ks, err := newX509KeyStore(key, cert)
	if err != nil {
		return nil, err
	}

	ctx := dsig.NewDefaultSigningContext(ks)
	ctx.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
	if signatureMethod != "" {
		if err := ctx.SetSignatureMethod(signatureMethod); err != nil {
			return nil, fmt.Errorf("samlsp: unsupported signature method %q: %w", signatureMethod, err)
		}
	}
	return &XMLSigner{ctx: ctx}, nil
}

// SignElement signs el in place, inserting an enveloped <ds:Signature> as
// its first child, and returns the signed element.
func (s *XMLSigner) SignElement(el *etree.Element) (*etree.Element, error) {
	signed, err := s.ctx.SignEnveloped(el)
	if err != nil {
		return nil, saml.NewError(saml.ErrConfiguration, "cannot sign element", err)
	}
	return signed, nil
}

// x509KeyStore adapts a crypto.Signer + certificate pair to goxmldsig's
// X509KeyStore interface.
type x509KeyStore struct {
	key  crypto.Signer
	cert *x509.Certificate
}

func newX509KeyStore(key crypto.Signer, cert *x509.Certificate) (dsig.X509KeyStore, error) {
	if key == nil || cert == nil {
		return nil, saml.NewError(saml.ErrConfiguration, "signing requires both a key and a certificate", nil)
	}
	if _, ok := key.(*rsa.PrivateKey); !ok {
		return nil, saml.NewError(saml.ErrConfiguration, "signing key must be an RSA private key", nil)
	}
	return &x509KeyStore{key: key, cert: cert}, nil
}

func (k *x509KeyStore) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	return k.key.(*rsa.PrivateKey), k.cert.Raw, nil
}

// XMLVerifier checks enveloped XML-DSig signatures against a fixed set of
// trusted certificates (typically the certificates published in one IdP's
// metadata KeyDescriptor[use=signing] entries) (§4.5, §4.6).
type XMLVerifier struct {
	certs []*x509.Certificate
}

// NewXMLVerifier builds a verifier trusting exactly the given certificates.
func NewXMLVerifier(certs []*x509.Certificate) *XMLVerifier {
	return &XMLVerifier{certs: certs}
}

// Transform URNs a conformant enveloped signature over this SP's messages
// must carry, in order (§4.5, §6). A Reference with any other transform
// list is rejected even if the cryptographic validation otherwise passes.
const (
	envelopedSignatureTransform = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	exclusiveC14NTransform      = "http://www.w3.org/2001/10/xml-exc-c14n#"
)

// VerifyElement validates the enveloped signature on el, returning the
// validated element (with the Signature stripped) on success. A missing
// Signature child is reported distinctly from an invalid one so the caller
// can produce ErrSignatureMissing vs ErrSignatureInvalid (§7).
//
// expectedReferenceID must equal the ID attribute of the element the caller
// intends to trust (el itself, or the element el envelopes). The signature's
// Reference URI is checked against it, and its Transform list against the
// required {enveloped-signature, exclusive-c14n} pair, so that a signature
// whose Reference targets a different element in the document cannot be
// mistaken for one over el (a signature-wrapping attack).
func (v *XMLVerifier) VerifyElement(el *etree.Element, expectedReferenceID string) (*etree.Element, error) {
	sig := el.FindElement("./Signature")
	if sig == nil {
		sig = el.FindElement(".//*[local-name()='Signature']")
	}
	if sig == nil {
		return nil, saml.NewError(saml.ErrSignatureMissing, "element is not signed", nil)
	}

	ref := sig.FindElement(".//*[local-name()='Reference']")
	if ref == nil {
		return nil, saml.NewError(saml.ErrSignatureInvalid, "signature has no Reference", nil)
	}
	wantURI := "#" + expectedReferenceID
	if uri := ref.SelectAttrValue("URI", ""); uri != wantURI {
		return nil, saml.NewError(saml.ErrSignatureInvalid, fmt.Sprintf("signature Reference URI %q does not match expected %q", uri, wantURI), nil)
	}

	var gotTransforms []string
	for _, tr := range ref.FindElements(".//*[local-name()='Transform']") {
		gotTransforms = append(gotTransforms, tr.SelectAttrValue("Algorithm", ""))
	}
	wantTransforms := []string{envelopedSignatureTransform, exclusiveC14NTransform}
	if len(gotTransforms) != len(wantTransforms) {
		return nil, saml.NewError(saml.ErrSignatureInvalid, "signature Reference has an unexpected transform list", nil)
	}
	for i, want := range wantTransforms {
		if gotTransforms[i] != want {
			return nil, saml.NewError(saml.ErrSignatureInvalid, "signature Reference has an unexpected transform list", nil)
		}
	}

	store := &dsig.MemoryX509CertificateStore{Roots: v.certs}
	ctx := dsig.NewDefaultValidationContext(store)
	validated, err := ctx.Validate(el)
	if err != nil {
		return nil, saml.NewError(saml.ErrSignatureInvalid, "signature validation failed", err)
	}
	return validated, nil
}
