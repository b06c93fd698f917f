package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactEncodeDecodeRoundTrip(t *testing.T) {
	a := Artifact{
		TypeCode:      ArtifactTypeCode4,
		EndpointIndex: 1,
		SourceID:      SourceIDFor("https://idp.example.com/metadata"),
		MessageHandle: [20]byte{1, 2, 3},
	}

	decoded, err := DecodeArtifact(a.Encode())
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestDecodeArtifactRejectsWrongLength(t *testing.T) {
	_, err := DecodeArtifact("YWJj") // "abc" decoded, far too short
	require.Error(t, err)
	var samlErr *Error
	require.ErrorAs(t, err, &samlErr)
	assert.Equal(t, ErrMalformedMessage, samlErr.Kind)
}

func TestDecodeArtifactRejectsBadBase64(t *testing.T) {
	_, err := DecodeArtifact("not base64!!")
	require.Error(t, err)
}

func TestDecodeArtifactRejectsWrongTypeCode(t *testing.T) {
	a := Artifact{TypeCode: 0x0005, SourceID: SourceIDFor("x"), MessageHandle: [20]byte{}}
	_, err := DecodeArtifact(a.Encode())
	require.Error(t, err)
}

func TestSourceIDForIsDeterministic(t *testing.T) {
	assert.Equal(t, SourceIDFor("https://idp.example.com"), SourceIDFor("https://idp.example.com"))
	assert.NotEqual(t, SourceIDFor("https://idp.example.com"), SourceIDFor("https://idp2.example.com"))
}
