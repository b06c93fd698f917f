package saml

// AuthnRequestParams carries the per-call parameters for building an
// AuthnRequest. ProtocolBinding is the response binding the IDP should use
// (HTTPPostBinding or HTTPArtifactBinding; HTTPPostBinding when empty); Destination is the IDP's SSO
// endpoint for the request binding chosen by the caller.
type AuthnRequestParams struct {
	Destination                 string
	AssertionConsumerServiceURL string
	ProtocolBinding             string
	SPEntityID                  string
	ForceAuthn                  *bool
	IsPassive                   *bool
	AllowCreate                 *bool
	NameIDFormat                string
	AuthnContextClassRef        string // resolved by the caller from the AuthnLevel map
}

// NewAuthnRequest builds a well-formed AuthnRequest document. The
// returned ID must be registered with the RequestCorrelationCache by the
// caller (SPController) before the request is sent.
func NewAuthnRequest(p AuthnRequestParams) (*AuthnRequest, error) {
	if p.Destination == "" {
		return nil, NewError(ErrConfiguration, "authn request requires a destination", nil)
	}
	if p.SPEntityID == "" {
		return nil, NewError(ErrConfiguration, "authn request requires an SP entity ID", nil)
	}

	req := &AuthnRequest{
		ID:                          NewID(),
		Version:                     "2.0",
		IssueInstant:                RelaxedTime(TimeNow()),
		Destination:                 p.Destination,
		ProtocolBinding:             firstSet(p.ProtocolBinding, HTTPPostBinding),
		AssertionConsumerServiceURL: p.AssertionConsumerServiceURL,
		ForceAuthn:                  p.ForceAuthn,
		IsPassive:                   p.IsPassive,
		Issuer: Issuer{
			Format: EntityNameIDFormat,
			Value:  p.SPEntityID,
		},
	}

	if p.NameIDFormat != "" || p.AllowCreate != nil {
		req.NameIDPolicy = &NameIDPolicy{
			Format:      p.NameIDFormat,
			AllowCreate: p.AllowCreate,
		}
	}

	classRef := firstSet(p.AuthnContextClassRef, "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport")
	req.RequestedAuthnContext = &RequestedAuthnContext{
		Comparison:            "exact",
		AuthnContextClassRefs: []string{classRef},
	}

	return req, nil
}

// LogoutRequestParams carries the per-call parameters for building a
// LogoutRequest. NameID and SessionIndex are both required.
type LogoutRequestParams struct {
	Destination     string
	SPEntityID      string
	NameID          string
	NameIDFormat    string
	NameQualifier   string
	SPNameQualifier string
	SessionIndex    string
}

// NewLogoutRequest builds a well-formed LogoutRequest document. Both
// NameID and SessionIndex are required; their absence is a builder-time
// failure.
func NewLogoutRequest(p LogoutRequestParams) (*LogoutRequest, error) {
	if p.NameID == "" {
		return nil, NewError(ErrConfiguration, "logout request requires a NameID", nil)
	}
	if p.SessionIndex == "" {
		return nil, NewError(ErrConfiguration, "logout request requires a SessionIndex", nil)
	}
	if p.Destination == "" {
		return nil, NewError(ErrConfiguration, "logout request requires a destination", nil)
	}

	return &LogoutRequest{
		ID:            NewID(),
		Version:       "2.0",
		IssueInstant:  RelaxedTime(TimeNow()),
		Destination:   p.Destination,
		Issuer: Issuer{
			Format: EntityNameIDFormat,
			Value:  p.SPEntityID,
		},
		NameID: NameID{
			Format:          p.NameIDFormat,
			NameQualifier:   p.NameQualifier,
			SPNameQualifier: p.SPNameQualifier,
			Value:           p.NameID,
		},
		SessionIndex: p.SessionIndex,
	}, nil
}

// LogoutResponseParams carries the per-call parameters for building a
// LogoutResponse in reply to an incoming LogoutRequest.
type LogoutResponseParams struct {
	InResponseToID string
	Destination    string
	SPEntityID     string
	StatusCode     string // defaults to StatusSuccess
}

// NewLogoutResponse builds a LogoutResponse whose InResponseTo matches the
// triggering LogoutRequest's ID.
func NewLogoutResponse(p LogoutResponseParams) (*LogoutResponse, error) {
	if p.InResponseToID == "" {
		return nil, NewError(ErrConfiguration, "logout response requires the triggering request ID", nil)
	}

	return &LogoutResponse{
		ID:           NewID(),
		InResponseTo: p.InResponseToID,
		Version:      "2.0",
		IssueInstant: RelaxedTime(TimeNow()),
		Destination:  p.Destination,
		Issuer: Issuer{
			Format: EntityNameIDFormat,
			Value:  p.SPEntityID,
		},
		Status: Status{
			StatusCode: StatusCode{Value: firstSet(p.StatusCode, StatusSuccess)},
		},
	}, nil
}

// NewArtifactResolve builds an ArtifactResolve document for the given
// artifact, addressed to the IDP's ArtifactResolutionService.
func NewArtifactResolve(spEntityID, destination, artifact string) (*ArtifactResolve, error) {
	if artifact == "" {
		return nil, NewError(ErrConfiguration, "artifact resolve requires an artifact value", nil)
	}
	return &ArtifactResolve{
		ID:           NewID(),
		Version:      "2.0",
		IssueInstant: RelaxedTime(TimeNow()),
		Destination:  destination,
		Issuer: Issuer{
			Format: EntityNameIDFormat,
			Value:  spEntityID,
		},
		Artifact: artifact,
	}, nil
}
