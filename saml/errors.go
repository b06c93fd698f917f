package saml

import "fmt"

// ErrorKind tags a Error with the taxonomy the host uses to decide how to
// respond.
type ErrorKind string

const (
	// ErrConfiguration covers a missing signing alias, malformed metadata
	// XML, or a reference to an unknown binding.
	ErrConfiguration ErrorKind = "configuration_error"
	// ErrMalformedMessage covers an XML parse failure or a required field
	// that is absent from a message.
	ErrMalformedMessage ErrorKind = "malformed_message"
	// ErrSignatureMissing covers a policy that required a signature that
	// was not present on the message.
	ErrSignatureMissing ErrorKind = "signature_missing"
	// ErrSignatureInvalid covers a signature that was present but failed
	// verification, including a certificate mismatch, digest mismatch, or
	// bad reference URI.
	ErrSignatureInvalid ErrorKind = "signature_invalid"
	// ErrUnknownIssuer covers an Issuer that is not a key of
	// MetadataStore.IdPs.
	ErrUnknownIssuer ErrorKind = "unknown_issuer"
	// ErrNotInCircleOfTrust covers an Issuer that is known but outside
	// every circle of trust that contains the SP.
	ErrNotInCircleOfTrust ErrorKind = "not_in_circle_of_trust"
	// ErrAssertionExpired covers a time-window failure.
	ErrAssertionExpired ErrorKind = "assertion_expired_or_not_yet_valid"
	// ErrAudienceMismatch covers the SP entity ID being absent from the
	// assertion's audience restriction.
	ErrAudienceMismatch ErrorKind = "audience_mismatch"
	// ErrResponderFailure covers a StatusCode other than Success; the
	// original status code is carried on the error.
	ErrResponderFailure ErrorKind = "responder_failure"
	// ErrCorrelationMismatch covers an InResponseTo that is not tracked,
	// or an ArtifactResolve/ArtifactResponse ID mismatch.
	ErrCorrelationMismatch ErrorKind = "correlation_mismatch"
	// ErrRelayStateRejected covers a RelayState outside the whitelist.
	ErrRelayStateRejected ErrorKind = "relay_state_rejected"
	// ErrBackChannelError covers an HTTP/TLS/SOAP failure reaching the IDP.
	ErrBackChannelError ErrorKind = "back_channel_error"
	// ErrCancelled covers the host cancelling a blocking operation.
	ErrCancelled ErrorKind = "cancelled"
)

// Error is the single tagged failure type every core operation returns.
// SPController attaches RawXML (the message under consideration, if any)
// so the host can log it; the host maps Kind to an HTTP status.
type Error struct {
	Kind       ErrorKind
	Message    string
	Cause      error
	RawXML     []byte
	StatusCode string // populated for ErrResponderFailure
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("saml: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("saml: %s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is lets callers test with errors.Is(err, saml.ErrSignatureInvalid) by
// comparing against a sentinel *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewError constructs a *Error of the given kind.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithRawXML attaches the raw message XML under consideration when the
// error occurred, for the host's log sink.
func (e *Error) WithRawXML(raw []byte) *Error {
	e.RawXML = raw
	return e
}

// Sentinel values usable with errors.Is to test error kind only.
var (
	ErrKindConfiguration       = &Error{Kind: ErrConfiguration}
	ErrKindMalformedMessage    = &Error{Kind: ErrMalformedMessage}
	ErrKindSignatureMissing    = &Error{Kind: ErrSignatureMissing}
	ErrKindSignatureInvalid    = &Error{Kind: ErrSignatureInvalid}
	ErrKindUnknownIssuer       = &Error{Kind: ErrUnknownIssuer}
	ErrKindNotInCircleOfTrust  = &Error{Kind: ErrNotInCircleOfTrust}
	ErrKindAssertionExpired    = &Error{Kind: ErrAssertionExpired}
	ErrKindAudienceMismatch    = &Error{Kind: ErrAudienceMismatch}
	ErrKindResponderFailure    = &Error{Kind: ErrResponderFailure}
	ErrKindCorrelationMismatch = &Error{Kind: ErrCorrelationMismatch}
	ErrKindRelayStateRejected  = &Error{Kind: ErrRelayStateRejected}
	ErrKindBackChannelError    = &Error{Kind: ErrBackChannelError}
	ErrKindCancelled           = &Error{Kind: ErrCancelled}
)
