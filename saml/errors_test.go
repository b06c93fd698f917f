package saml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKindOnly(t *testing.T) {
	err := NewError(ErrSignatureInvalid, "bad digest", errors.New("digest mismatch"))
	assert.True(t, errors.Is(err, ErrKindSignatureInvalid))
	assert.False(t, errors.Is(err, ErrKindUnknownIssuer))
}

func TestErrorUnwrapExposesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := NewError(ErrConfiguration, "bad config", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorAsRecoversConcreteType(t *testing.T) {
	err := NewError(ErrAudienceMismatch, "not for us", nil)
	var samlErr *Error
	assert.True(t, errors.As(err, &samlErr))
	assert.Equal(t, ErrAudienceMismatch, samlErr.Kind)
}

func TestWithRawXMLAttachesPayload(t *testing.T) {
	err := NewError(ErrMalformedMessage, "bad xml", nil).WithRawXML([]byte("<x/>"))
	assert.Equal(t, []byte("<x/>"), err.RawXML)
}
