package samlsp

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"

	xrv "github.com/mattermost/xml-roundtrip-validator"

	"github.com/fedletgo/saml"
	"github.com/fedletgo/saml/logger"
)

// ParseIdPMetadata parses an IdP metadata document, whose top-level element
// is sometimes an EntityDescriptor and sometimes an EntitiesDescriptor
// wrapping several. It returns the first descriptor carrying an
// IDPSSODescriptor.
func ParseIdPMetadata(data []byte) (*saml.EntityDescriptor, error) {
	if err := xrv.Validate(bytes.NewReader(data)); err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "metadata failed XML validation", err)
	}

	entity := &saml.EntityDescriptor{}
	err := xml.Unmarshal(data, entity)
	if err != nil && err.Error() == "expected element type <EntityDescriptor> but have <EntitiesDescriptor>" {
		entities, err := ParseEntitiesMetadata(data)
		if err != nil {
			return nil, err
		}
		for i := range entities.EntityDescriptors {
			if len(entities.EntityDescriptors[i].IDPSSODescriptors) > 0 {
				return &entities.EntityDescriptors[i], nil
			}
		}
		return nil, saml.NewError(saml.ErrMalformedMessage, "metadata has no entity with an IDPSSODescriptor", nil)
	}
	if err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot parse metadata", err)
	}
	return entity, nil
}

// ParseEntitiesMetadata parses a federation-wide EntitiesDescriptor
// document, tolerating a bare EntityDescriptor at the top level as well.
func ParseEntitiesMetadata(data []byte) (*saml.EntitiesDescriptor, error) {
	if err := xrv.Validate(bytes.NewReader(data)); err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "metadata failed XML validation", err)
	}

	entities := &saml.EntitiesDescriptor{}
	err := xml.Unmarshal(data, entities)
	if err != nil && err.Error() == "expected element type <EntitiesDescriptor> but have <EntityDescriptor>" {
		entity := &saml.EntityDescriptor{}
		if err := xml.Unmarshal(data, entity); err != nil {
			return nil, saml.NewError(saml.ErrMalformedMessage, "cannot parse metadata", err)
		}
		entities.EntityDescriptors = []saml.EntityDescriptor{*entity}
		return entities, nil
	}
	if err != nil {
		return nil, saml.NewError(saml.ErrMalformedMessage, "cannot parse metadata", err)
	}
	return entities, nil
}

// FetchIdPMetadata retrieves and parses a single IdP's metadata document
// over HTTP.
func FetchIdPMetadata(ctx context.Context, httpClient *http.Client, metadataURL url.URL) (*saml.EntityDescriptor, error) {
	data, err := fetchMetadataBytes(ctx, httpClient, metadataURL)
	if err != nil {
		return nil, err
	}
	return ParseIdPMetadata(data)
}

// FetchEntitiesMetadata retrieves and parses a federation-wide metadata
// document over HTTP.
func FetchEntitiesMetadata(ctx context.Context, httpClient *http.Client, metadataURL url.URL) (*saml.EntitiesDescriptor, error) {
	data, err := fetchMetadataBytes(ctx, httpClient, metadataURL)
	if err != nil {
		return nil, err
	}
	return ParseEntitiesMetadata(data)
}

func fetchMetadataBytes(ctx context.Context, httpClient *http.Client, metadataURL url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.DefaultLogger.Printf("error closing metadata response body: %v", err)
		}
	}()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("samlsp: fetch metadata: unexpected status code %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// idpRecord is one configured IdP: its metadata, the circle of trust it
// belongs to, and an ExtendedConfig override specific to that IdP (nil
// means "use the SP's default").
type idpRecord struct {
	metadata *saml.EntityDescriptor
	cot      *CircleOfTrust
	config   *ExtendedConfig
}

// storeSnapshot is the immutable value swapped atomically by MetadataStore
// so concurrent readers never observe a partially updated configuration.
type storeSnapshot struct {
	idpsByEntityID map[string]idpRecord
}

// MetadataStore holds every IdP an SP trusts, organized for O(1) lookup by
// issuer entity ID during validation (§4.6). Updates replace the whole
// snapshot atomically so readers never take a lock; this mirrors the
// atomic.Pointer swap pattern the pack uses for hot-reloadable
// configuration (fetch_metadata.go's caller reloads periodically in the
// teacher's deployment, never while holding a read in progress).
type MetadataStore struct {
	snapshot atomic.Pointer[storeSnapshot]
}

// NewMetadataStore returns an empty store. Call AddIdP to register IdPs
// before validating any response.
func NewMetadataStore() *MetadataStore {
	s := &MetadataStore{}
	s.snapshot.Store(&storeSnapshot{idpsByEntityID: map[string]idpRecord{}})
	return s
}

// AddIdP registers or replaces the metadata, circle of trust, and
// (optional) per-IdP config override for one IdP. Safe to call
// concurrently with LookupIdP.
func (s *MetadataStore) AddIdP(metadata *saml.EntityDescriptor, cot *CircleOfTrust, config *ExtendedConfig) {
	for {
		old := s.snapshot.Load()
		next := &storeSnapshot{idpsByEntityID: make(map[string]idpRecord, len(old.idpsByEntityID)+1)}
		for k, v := range old.idpsByEntityID {
			next.idpsByEntityID[k] = v
		}
		next.idpsByEntityID[metadata.EntityID] = idpRecord{metadata: metadata, cot: cot, config: config}
		if s.snapshot.CompareAndSwap(old, next) {
			return
		}
	}
}

// RemoveIdP drops a previously registered IdP.
func (s *MetadataStore) RemoveIdP(entityID string) {
	for {
		old := s.snapshot.Load()
		if _, ok := old.idpsByEntityID[entityID]; !ok {
			return
		}
		next := &storeSnapshot{idpsByEntityID: make(map[string]idpRecord, len(old.idpsByEntityID))}
		for k, v := range old.idpsByEntityID {
			if k != entityID {
				next.idpsByEntityID[k] = v
			}
		}
		if s.snapshot.CompareAndSwap(old, next) {
			return
		}
	}
}

// LookupIdP returns the metadata and circle of trust registered for the
// given issuer entity ID. ok is false if the issuer is unknown, which the
// caller must surface as ErrUnknownIssuer (§4.6, §7).
func (s *MetadataStore) LookupIdP(entityID string) (metadata *saml.EntityDescriptor, cot *CircleOfTrust, config *ExtendedConfig, ok bool) {
	rec, ok := s.snapshot.Load().idpsByEntityID[entityID]
	if !ok {
		return nil, nil, nil, false
	}
	return rec.metadata, rec.cot, rec.config, true
}

// KnownEntityIDs returns every entity ID currently registered, primarily
// for diagnostics and tests.
func (s *MetadataStore) KnownEntityIDs() []string {
	snap := s.snapshot.Load()
	ids := make([]string, 0, len(snap.idpsByEntityID))
	for id := range snap.idpsByEntityID {
		ids = append(ids, id)
	}
	return ids
}

// SourceIDIndex finds the IdP whose artifact SourceID (sha1 of entity ID)
// matches the given bytes, as required to route an incoming artifact to
// the right ArtifactResolutionService (§4.7).
func (s *MetadataStore) SourceIDIndex(sourceID [20]byte) (*saml.EntityDescriptor, bool) {
	snap := s.snapshot.Load()
	for entityID, rec := range snap.idpsByEntityID {
		if saml.SourceIDFor(entityID) == sourceID {
			return rec.metadata, true
		}
	}
	return nil, false
}
