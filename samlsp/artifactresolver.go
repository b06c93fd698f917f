package samlsp

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"net/http"

	"github.com/beevik/etree"

	"github.com/fedletgo/saml"
	"github.com/fedletgo/saml/samlsp/samlcodec"
)

// ArtifactResolver resolves a SAML artifact received via the HTTP-Artifact
// binding by POSTing an ArtifactResolve over SOAP to the owning IdP's
// ArtifactResolutionService (§4.7).
type ArtifactResolver struct {
	spEntityID      string
	signingKey      crypto.Signer
	signingCrt      *x509.Certificate
	signatureMethod string
	httpClient      *http.Client
	store           *MetadataStore
}

// NewArtifactResolver builds a resolver. httpClient must not follow
// redirects automatically; pass a client configured with
// CheckRedirect returning http.ErrUseLastResponse, or nil to use a
// default client with redirects disabled (§4.7 "no auto-redirects").
// signatureMethod follows the requesting SP's ExtendedConfig (§3); an
// empty value falls back to NewXMLSigner's default (RSA-SHA256).
func NewArtifactResolver(spEntityID string, signingKey crypto.Signer, signingCrt *x509.Certificate, signatureMethod string, httpClient *http.Client, store *MetadataStore) *ArtifactResolver {
	if httpClient == nil {
		httpClient = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &ArtifactResolver{
		spEntityID:      spEntityID,
		signingKey:      signingKey,
		signingCrt:      signingCrt,
		signatureMethod: signatureMethod,
		httpClient:      httpClient,
		store:           store,
	}
}

// Resolve decodes the artifact, locates the owning IdP by matching its
// SourceID, sends an ArtifactResolve to that IdP's
// ArtifactResolutionService, and returns the embedded message's raw XML
// once the response's InResponseTo is confirmed to match.
func (r *ArtifactResolver) Resolve(ctx context.Context, encodedArtifact string) ([]byte, error) {
	artifact, err := saml.DecodeArtifact(encodedArtifact)
	if err != nil {
		return nil, err
	}

	idp, ok := r.store.SourceIDIndex(artifact.SourceID)
	if !ok {
		return nil, saml.NewError(saml.ErrUnknownIssuer, "no configured IdP matches this artifact's SourceID", nil)
	}

	destination := artifactResolutionServiceFor(idp)
	if destination == "" {
		return nil, saml.NewError(saml.ErrConfiguration, "IdP metadata has no ArtifactResolutionService", nil)
	}

	resolve, err := saml.NewArtifactResolve(r.spEntityID, destination, encodedArtifact)
	if err != nil {
		return nil, err
	}

	messageXML, err := marshalSigned(resolve, r.signingKey, r.signingCrt, r.signatureMethod)
	if err != nil {
		return nil, err
	}

	envelope, err := samlcodec.WrapSOAP(messageXML)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(envelope))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("SOAPAction", "http://www.oasis-open.org/committees/security")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, saml.NewError(saml.ErrBackChannelError, "artifact resolution request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, saml.NewError(saml.ErrBackChannelError, fmt.Sprintf("artifact resolution returned status %d", resp.StatusCode), nil)
	}

	body := &bytes.Buffer{}
	if _, err := body.ReadFrom(resp.Body); err != nil {
		return nil, saml.NewError(saml.ErrBackChannelError, "cannot read artifact resolution response", err)
	}

	soapBody, err := samlcodec.ExtractSOAPBody(body.Bytes())
	if err != nil {
		return nil, err
	}

	parsed, err := saml.ParseArtifactResponseMessage(soapBody)
	if err != nil {
		return nil, err
	}
	inResponseTo, err := parsed.InResponseTo()
	if err != nil {
		return nil, err
	}
	if inResponseTo != resolve.ID {
		return nil, saml.NewError(saml.ErrCorrelationMismatch, "ArtifactResponse InResponseTo does not match the ArtifactResolve we sent", nil)
	}
	statusCode, err := parsed.StatusCode()
	if err != nil {
		return nil, err
	}
	if statusCode != saml.StatusSuccess {
		return nil, saml.NewError(saml.ErrResponderFailure, "IdP reported a failure resolving the artifact", nil).WithRawXML(soapBody)
	}

	embedded, err := parsed.EmbeddedAuthnResponse()
	if err != nil {
		return nil, err
	}
	return embedded.Raw, nil
}

func artifactResolutionServiceFor(idp *saml.EntityDescriptor) string {
	for _, desc := range idp.IDPSSODescriptors {
		for _, svc := range desc.ArtifactResolutionServices {
			if svc.Binding == saml.HTTPSOAPBinding {
				return svc.Location
			}
		}
	}
	return ""
}

// marshalSigned serializes v to XML and, when a signing key/cert pair is
// configured, wraps it with an enveloped signature using etree so the
// resulting bytes carry a valid <ds:Signature>. An empty signatureMethod
// falls back to NewXMLSigner's default (RSA-SHA256, §3 ExtendedConfig).
func marshalSigned(v interface{}, key crypto.Signer, cert *x509.Certificate, signatureMethod string) ([]byte, error) {
	raw, err := marshalXML(v)
	if err != nil {
		return nil, err
	}
	if key == nil || cert == nil {
		return raw, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot reparse message for signing", err)
	}
	signer, err := NewXMLSigner(key, cert, signatureMethod)
	if err != nil {
		return nil, err
	}
	signed, err := signer.SignElement(doc.Root())
	if err != nil {
		return nil, err
	}
	doc.SetRoot(signed)
	return doc.WriteToBytes()
}
