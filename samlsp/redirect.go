package samlsp

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/fedletgo/saml"
)

// Redirect binding signature algorithm URNs (SAML Bindings v2.0 §3.4.4.1).
const (
	RedirectSigAlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	RedirectSigAlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
)

// paramName identifies which of SAMLRequest/SAMLResponse a redirect carries.
type paramName string

const (
	SAMLRequestParam  paramName = "SAMLRequest"
	SAMLResponseParam paramName = "SAMLResponse"
)

// RedirectSigner signs and verifies the HTTP-Redirect binding's query
// string signature, which covers the exact byte sequence
// "<Param>=<urlencoded>&RelayState=<urlencoded>&SigAlg=<urlencoded>" in
// that field order (§4.1, §8 property byte-exactness).
type RedirectSigner struct {
	key       *rsa.PrivateKey
	cert      *x509.Certificate
	sigAlg    string
}

// NewRedirectSigner builds a signer for outgoing redirects. sigAlg
// defaults to RSA-SHA1, the only algorithm the original deployment ever
// advertised (§4.1, §9 design notes); pass RedirectSigAlgRSASHA256 to
// negotiate the stronger algorithm with an IdP that supports it.
func NewRedirectSigner(key *rsa.PrivateKey, cert *x509.Certificate, sigAlg string) *RedirectSigner {
	if sigAlg == "" {
		sigAlg = RedirectSigAlgRSASHA1
	}
	return &RedirectSigner{key: key, cert: cert, sigAlg: sigAlg}
}

// SignQuery builds the complete signed query string for a redirect binding
// message. param selects SAMLRequest or SAMLResponse.
func (s *RedirectSigner) SignQuery(param paramName, encodedMessage, relayState string) (string, error) {
	signable := signableQuery(param, encodedMessage, relayState, s.sigAlg)
	if s.key == nil {
		return signable, nil
	}

	hashed, err := hashFor(s.sigAlg, []byte(signable))
	if err != nil {
		return "", err
	}

	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, hashAlgFor(s.sigAlg), hashed)
	if err != nil {
		return "", saml.NewError(saml.ErrConfiguration, "cannot sign redirect query", err)
	}

	return signable + "&Signature=" + url.QueryEscape(base64.StdEncoding.EncodeToString(sig)), nil
}

// VerifyRedirectQuery verifies a received redirect binding's query string
// signature against cert. rawQuery must be the exact, unparsed query
// string as received (order-sensitive; §8 property byte-exactness) and
// must contain Signature and SigAlg parameters.
func VerifyRedirectQuery(rawQuery string, cert *x509.Certificate) error {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return saml.NewError(saml.ErrMalformedMessage, "cannot parse redirect query", err)
	}

	sigAlg := values.Get("SigAlg")
	signatureB64 := values.Get("Signature")
	if sigAlg == "" || signatureB64 == "" {
		return saml.NewError(saml.ErrSignatureMissing, "redirect query has no Signature/SigAlg", nil)
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return saml.NewError(saml.ErrMalformedMessage, "invalid base64 in Signature parameter", err)
	}

	param := SAMLRequestParam
	if values.Get(string(SAMLResponseParam)) != "" {
		param = SAMLResponseParam
	}

	signable, err := signedPortionOf(rawQuery, param)
	if err != nil {
		return err
	}

	hashed, err := hashFor(sigAlg, []byte(signable))
	if err != nil {
		return saml.NewError(saml.ErrSignatureInvalid, "unsupported signature algorithm", err)
	}

	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return saml.NewError(saml.ErrConfiguration, "certificate does not carry an RSA public key", nil)
	}

	if err := rsa.VerifyPKCS1v15(pub, hashAlgFor(sigAlg), hashed, signature); err != nil {
		return saml.NewError(saml.ErrSignatureInvalid, "redirect signature verification failed", err)
	}
	return nil
}

// signableQuery builds "<Param>=<enc>&RelayState=<enc>&SigAlg=<enc>",
// omitting RelayState entirely when empty, per the exact field ordering
// SAML Bindings v2.0 §3.4.4.1 mandates.
func signableQuery(param paramName, encodedMessage, relayState, sigAlg string) string {
	s := fmt.Sprintf("%s=%s", param, url.QueryEscape(encodedMessage))
	if relayState != "" {
		s += "&RelayState=" + url.QueryEscape(relayState)
	}
	s += "&SigAlg=" + url.QueryEscape(sigAlg)
	return s
}

// signedPortionOf extracts, byte for byte, the substring of rawQuery that
// was signed: from the start of "<Param>=" through the end of the SigAlg
// value, preserving the sender's original percent-encoding rather than
// re-encoding from parsed values.
func signedPortionOf(rawQuery string, param paramName) (string, error) {
	sigAlgIdx := indexOfParam(rawQuery, "SigAlg")
	if sigAlgIdx == -1 {
		return "", saml.NewError(saml.ErrMalformedMessage, "redirect query missing SigAlg", nil)
	}
	sigAlgEnd := len(rawQuery)
	if amp := indexAfter(rawQuery, sigAlgIdx, '&'); amp != -1 {
		sigAlgEnd = amp
	}

	paramIdx := indexOfParam(rawQuery, string(param))
	if paramIdx == -1 {
		return "", saml.NewError(saml.ErrMalformedMessage, fmt.Sprintf("redirect query missing %s", param), nil)
	}

	return rawQuery[paramIdx:sigAlgEnd], nil
}

func indexOfParam(rawQuery, name string) int {
	for i := 0; i+len(name) <= len(rawQuery); i++ {
		if rawQuery[i:i+len(name)] == name && (i == 0 || rawQuery[i-1] == '&') && i+len(name) < len(rawQuery) && rawQuery[i+len(name)] == '=' {
			return i
		}
	}
	return -1
}

func indexAfter(s string, from int, b byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func hashFor(sigAlg string, data []byte) ([]byte, error) {
	switch sigAlg {
	case RedirectSigAlgRSASHA1:
		h := sha1.Sum(data)
		return h[:], nil
	case RedirectSigAlgRSASHA256, "":
		h := sha256.Sum256(data)
		return h[:], nil
	default:
		return nil, fmt.Errorf("samlsp: unsupported SigAlg %q", sigAlg)
	}
}

func hashAlgFor(sigAlg string) crypto.Hash {
	if sigAlg == RedirectSigAlgRSASHA1 {
		return crypto.SHA1
	}
	return crypto.SHA256
}
