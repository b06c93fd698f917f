// Package saml implements the wire types and message construction/parsing
// for the SAMLv2 Web SSO profile as used by a Service Provider (SP).
//
// An Identity Provider (IDP) is a service that knows how to authenticate
// users. A Service Provider (SP) delegates that responsibility to an IDP
// and, in exchange, receives a signed assertion about who the user is.
// This package implements the SP side only: it builds AuthnRequest and
// LogoutRequest/LogoutResponse documents, parses the corresponding IDP
// responses, and exposes the SAML metadata document types used to describe
// both sides of the trust relationship.
//
// The orchestration of these pieces against an HTTP host (binding
// selection, signature verification, response validation, and request
// correlation) lives in the samlsp package.
package saml
