package saml

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// ArtifactTypeCode4 is the SAML2 artifact type code this core produces and
// recognizes (SAML Bindings v2.0 §3.6.2.1 Type Code 0x0004).
const ArtifactTypeCode4 = uint16(0x0004)

// artifactLength is the wire length of a type-4 artifact:
// TypeCode(2) || EndpointIndex(2) || SourceID(20) || MessageHandle(20).
const artifactLength = 2 + 2 + 20 + 20

// Artifact is the decoded form of a SAML HTTP-Artifact binding handle.
type Artifact struct {
	TypeCode      uint16
	EndpointIndex uint16
	SourceID      [20]byte
	MessageHandle [20]byte
}

// SourceIDFor returns SHA-1(entityID) as used to populate and match the
// SourceID field of an Artifact (SAML Bindings v2.0 §3.6.2.1).
func SourceIDFor(entityID string) [20]byte {
	return sha1.Sum([]byte(entityID))
}

// Encode returns the base64 encoding of the 44-byte wire representation of
// the artifact.
func (a Artifact) Encode() string {
	buf := make([]byte, artifactLength)
	binary.BigEndian.PutUint16(buf[0:2], a.TypeCode)
	binary.BigEndian.PutUint16(buf[2:4], a.EndpointIndex)
	copy(buf[4:24], a.SourceID[:])
	copy(buf[24:44], a.MessageHandle[:])
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeArtifact parses the base64-encoded SAMLart query parameter into its
// constituent fields. It is a protocol error if the decoded length is not
// exactly 44 bytes.
func DecodeArtifact(encoded string) (Artifact, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Artifact{}, NewError(ErrMalformedMessage, "artifact is not valid base64", err)
	}
	if len(buf) != artifactLength {
		return Artifact{}, NewError(ErrMalformedMessage,
			fmt.Sprintf("artifact has wrong length: got %d want %d", len(buf), artifactLength), nil)
	}

	var a Artifact
	a.TypeCode = binary.BigEndian.Uint16(buf[0:2])
	a.EndpointIndex = binary.BigEndian.Uint16(buf[2:4])
	copy(a.SourceID[:], buf[4:24])
	copy(a.MessageHandle[:], buf[24:44])

	if a.TypeCode != ArtifactTypeCode4 {
		return Artifact{}, NewError(ErrMalformedMessage,
			fmt.Sprintf("unsupported artifact type code 0x%04x", a.TypeCode), nil)
	}
	return a, nil
}
