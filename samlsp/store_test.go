package samlsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedletgo/saml"
)

func TestParseIdPMetadataAcceptsBareEntityDescriptor(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://idp.example.com">
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/sso"/>
  </IDPSSODescriptor>
</EntityDescriptor>`)

	entity, err := ParseIdPMetadata(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com", entity.EntityID)
	require.Len(t, entity.IDPSSODescriptors, 1)
}

func TestParseIdPMetadataUnwrapsEntitiesDescriptor(t *testing.T) {
	doc := []byte(`<?xml version="1.0"?>
<EntitiesDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata">
  <EntityDescriptor entityID="https://sp-only.example.com">
    <SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol"/>
  </EntityDescriptor>
  <EntityDescriptor entityID="https://idp.example.com">
    <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
      <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example.com/sso"/>
    </IDPSSODescriptor>
  </EntityDescriptor>
</EntitiesDescriptor>`)

	entity, err := ParseIdPMetadata(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example.com", entity.EntityID)
}

func TestMetadataStoreLookupAndRemove(t *testing.T) {
	store := NewMetadataStore()
	idp := &saml.EntityDescriptor{EntityID: "https://idp.example.com"}
	cot := NewCircleOfTrust("federation-a", "https://idp.example.com")

	store.AddIdP(idp, cot, nil)

	found, foundCot, _, ok := store.LookupIdP("https://idp.example.com")
	require.True(t, ok)
	assert.Equal(t, idp, found)
	assert.True(t, foundCot.Contains("https://idp.example.com"))

	store.RemoveIdP("https://idp.example.com")
	_, _, _, ok = store.LookupIdP("https://idp.example.com")
	assert.False(t, ok)
}

func TestMetadataStoreSourceIDIndex(t *testing.T) {
	store := NewMetadataStore()
	idp := &saml.EntityDescriptor{EntityID: "https://idp.example.com"}
	store.AddIdP(idp, NewCircleOfTrust("f"), nil)

	found, ok := store.SourceIDIndex(saml.SourceIDFor("https://idp.example.com"))
	require.True(t, ok)
	assert.Equal(t, idp, found)

	_, ok = store.SourceIDIndex(saml.SourceIDFor("https://unknown.example.com"))
	assert.False(t, ok)
}
