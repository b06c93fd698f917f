package samlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressBase64URLEncodeRoundTrip(t *testing.T) {
	original := []byte(`<samlp:AuthnRequest xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" ID="_abc"/>`)

	encoded, err := CompressBase64URLEncode(original)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "<")

	decoded, err := DecodeURLBase64Inflate(encoded)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestInflateRejectsEmptyInput(t *testing.T) {
	_, err := Inflate(nil)
	assert.Error(t, err)
}

func TestBase64RoundTrip(t *testing.T) {
	raw := []byte("hello world")
	encoded := Base64Encode(raw)
	decoded, err := Base64Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestBase64DecodeRejectsInvalid(t *testing.T) {
	_, err := Base64Decode("not valid base64!!!")
	assert.Error(t, err)
}

func TestWrapAndExtractSOAP(t *testing.T) {
	message := []byte(`<samlp:ArtifactResolve xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol" ID="_1"/>`)

	envelope, err := WrapSOAP(message)
	require.NoError(t, err)

	body, err := ExtractSOAPBody(envelope)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ArtifactResolve")
}

func TestExtractSOAPBodyRejectsEmptyBody(t *testing.T) {
	envelope := []byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body></soap:Body></soap:Envelope>`)
	_, err := ExtractSOAPBody(envelope)
	assert.Error(t, err)
}

func TestURLEncodeDecodeRoundTrip(t *testing.T) {
	s := "a value with spaces & symbols=?"
	decoded, err := URLDecode(URLEncode(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}
