// Package samlcodec implements the encoding pipeline shared by every SAML
// binding this core supports: base64, URL-encoding, raw DEFLATE (no
// zlib/gzip header, per SAML Bindings v2.0 §3.4.4.1), and SOAP envelope
// wrap/unwrap.
package samlcodec

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
)

// soapEnvelopeNS is the SOAP 1.1 envelope namespace used by the HTTP-SOAP
// and HTTP-Artifact bindings (§6).
const soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

// Base64Encode encodes raw bytes as standard base64, as used for the
// HTTP-POST binding's hidden form fields.
func Base64Encode(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Base64Decode decodes standard base64, as received in the HTTP-POST
// binding's SAMLRequest/SAMLResponse form fields.
func Base64Decode(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("samlcodec: invalid base64: %w", err)
	}
	return raw, nil
}

// URLEncode percent-encodes a string for use as a single query parameter
// value.
func URLEncode(s string) string {
	return url.QueryEscape(s)
}

// URLDecode reverses URLEncode.
func URLDecode(s string) (string, error) {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return "", fmt.Errorf("samlcodec: invalid URL encoding: %w", err)
	}
	return decoded, nil
}

// Deflate compresses raw bytes using raw DEFLATE (RFC 1951, no zlib/gzip
// header), as required by the HTTP-Redirect binding.
func Deflate(raw []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := flate.NewWriter(buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("samlcodec: new flate writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("samlcodec: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("samlcodec: flate close: %w", err)
	}
	return buf.Bytes(), nil
}

// Inflate decompresses raw DEFLATE data. Empty input is a protocol error
// per §4.1.
func Inflate(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, fmt.Errorf("samlcodec: cannot inflate empty input")
	}
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("samlcodec: inflate: %w", err)
	}
	return raw, nil
}

// CompressBase64URLEncode implements the HTTP-Redirect binding's encoding
// pipeline: raw DEFLATE, then base64, then URL-encode (§4.1, §6).
func CompressBase64URLEncode(xmlDoc []byte) (string, error) {
	deflated, err := Deflate(xmlDoc)
	if err != nil {
		return "", err
	}
	return URLEncode(Base64Encode(deflated)), nil
}

// DecodeURLBase64Inflate reverses CompressBase64URLEncode: URL-decode, then
// base64-decode, then inflate.
func DecodeURLBase64Inflate(encoded string) ([]byte, error) {
	urlDecoded, err := URLDecode(encoded)
	if err != nil {
		return nil, err
	}
	compressed, err := Base64Decode(urlDecoded)
	if err != nil {
		return nil, err
	}
	return Inflate(compressed)
}

// soapEnvelope is the minimal SOAP 1.1 envelope this core wraps/unwraps.
// The Body holds the raw inner XML verbatim so callers can unmarshal it
// into whatever SAML protocol type applies.
type soapEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    soapBody `xml:"http://schemas.xmlsoap.org/soap/envelope/ Body"`
}

type soapBody struct {
	InnerXML []byte `xml:",innerxml"`
}

// WrapSOAP wraps the given SAML message XML in a SOAP envelope, as used by
// the HTTP-SOAP binding (artifact resolution, SOAP logout) (§6).
func WrapSOAP(message []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, `<soap:Envelope xmlns:soap=%q><soap:Body>`, soapEnvelopeNS)
	buf.Write(message)
	buf.WriteString(`</soap:Body></soap:Envelope>`)
	return buf.Bytes(), nil
}

// ExtractSOAPBody returns the raw bytes of the single element child of
// /Envelope/Body, regardless of its qualified name. A missing body is a
// protocol error.
func ExtractSOAPBody(envelope []byte) ([]byte, error) {
	env := &soapEnvelope{}
	if err := xml.Unmarshal(envelope, env); err != nil {
		return nil, fmt.Errorf("samlcodec: cannot unmarshal SOAP envelope: %w", err)
	}
	if len(bytes.TrimSpace(env.Body.InnerXML)) == 0 {
		return nil, fmt.Errorf("samlcodec: SOAP envelope has no body child")
	}
	return env.Body.InnerXML, nil
}
