package saml

import "github.com/dchest/uniuri"

// idAlphabet matches uniuri's default alphabet restricted to characters
// that are valid anywhere in an XML NCName, so a generated ID is always a
// legal NCName once prefixed with an underscore.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a fresh, random message identifier suitable for the ID
// attribute of an AuthnRequest, LogoutRequest, LogoutResponse, or
// ArtifactResolve element. SAML IDs must be valid XML NCNames, which forbids
// a leading digit, so the value is prefixed with an underscore, which an
// NCName may start with.
func NewID() string {
	return "_" + uniuri.NewLenChars(40, []byte(idAlphabet))
}
