package samlsp

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSignatureMethod and DefaultDigestMethod are used when a SP's
// ExtendedConfig omits them.
const (
	DefaultSignatureMethod = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	DefaultDigestMethod    = "http://www.w3.org/2000/09/xmldsig#sha1"
	defaultAssertionSkewSeconds = 15
)

// AuthnContextMapping is one entry of the SP's bidirectional
// AuthnContextClassRef<->AuthLevel map, shaped "classRef|level|label".
type AuthnContextMapping struct {
	ClassRef string
	Level    string
	Label    string
}

// ExtendedConfig carries the SP-specific settings that are not part of the
// standard SAML metadata document.
type ExtendedConfig struct {
	SigningCertificateAlias    string
	EncryptionCertificateAlias string
	SignatureMethod            string
	DigestMethod               string
	MetaAlias                  string
	AssertionTimeSkewSeconds   int
	RelayStateUrlList          []string
	AuthnContextMappings       []AuthnContextMapping
	DefaultAuthnContextLabel   string

	WantArtifactResponseSigned bool
	WantPOSTResponseSigned     bool
	WantLogoutRequestSigned    bool
	WantLogoutResponseSigned   bool
}

// yamlExtendedConfig mirrors the on-disk document shape. It is loaded with
// gopkg.in/yaml.v3 rather than a bespoke schema.
type yamlExtendedConfig struct {
	SigningCertificateAlias    string   `yaml:"signingCertAlias"`
	EncryptionCertificateAlias string   `yaml:"encryptionCertAlias"`
	SignatureMethod            string   `yaml:"signatureMethod"`
	DigestMethod               string   `yaml:"digestMethod"`
	MetaAlias                  string   `yaml:"metaAlias"`
	AssertionTimeSkewSeconds   int      `yaml:"assertionTimeSkew"`
	RelayStateUrlList          []string `yaml:"relayStateUrlList"`
	DefaultAuthnContextLabel   string   `yaml:"default"`
	AuthnContextMappings       []string `yaml:"spAuthncontextClassrefMapping"`
	WantArtifactResponseSigned bool     `yaml:"wantArtifactResponseSigned"`
	WantPOSTResponseSigned     bool     `yaml:"wantPOSTResponseSigned"`
	WantLogoutRequestSigned    bool     `yaml:"wantLogoutRequestSigned"`
	WantLogoutResponseSigned   bool     `yaml:"wantLogoutResponseSigned"`
}

// ParseExtendedConfig parses the SP's extended-configuration document.
// Entries of spAuthncontextClassrefMapping are shaped
// "classRef|level|label". DefaultAuthnContextLabel is taken from the
// top-level "default" key ("default" when absent); the mapping entry whose
// label equals it is the SP's default AuthnContext.
func ParseExtendedConfig(data []byte) (*ExtendedConfig, error) {
	var doc yamlExtendedConfig
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("samlsp: cannot parse extended config: %w", err)
	}

	cfg := &ExtendedConfig{
		SigningCertificateAlias:    doc.SigningCertificateAlias,
		EncryptionCertificateAlias: doc.EncryptionCertificateAlias,
		SignatureMethod:            firstSet(doc.SignatureMethod, DefaultSignatureMethod),
		DigestMethod:               firstSet(doc.DigestMethod, DefaultDigestMethod),
		MetaAlias:                  doc.MetaAlias,
		AssertionTimeSkewSeconds:   doc.AssertionTimeSkewSeconds,
		RelayStateUrlList:          doc.RelayStateUrlList,
		DefaultAuthnContextLabel:   firstSet(doc.DefaultAuthnContextLabel, "default"),
		WantArtifactResponseSigned: doc.WantArtifactResponseSigned,
		WantPOSTResponseSigned:     doc.WantPOSTResponseSigned,
		WantLogoutRequestSigned:    doc.WantLogoutRequestSigned,
		WantLogoutResponseSigned:   doc.WantLogoutResponseSigned,
	}
	if cfg.AssertionTimeSkewSeconds == 0 {
		cfg.AssertionTimeSkewSeconds = defaultAssertionSkewSeconds
	}

	for _, raw := range doc.AuthnContextMappings {
		parts := strings.SplitN(raw, "|", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("samlsp: malformed authn context mapping %q, want classRef|level|label", raw)
		}
		cfg.AuthnContextMappings = append(cfg.AuthnContextMappings, AuthnContextMapping{
			ClassRef: parts[0],
			Level:    parts[1],
			Label:    parts[2],
		})
	}

	return cfg, nil
}

// ClassRefForLevel returns the AuthnContextClassRef configured for the
// given AuthLevel, or "" if none matches. Falling back to
// PasswordProtectedTransport is the caller's responsibility.
func (c *ExtendedConfig) ClassRefForLevel(level string) string {
	for _, m := range c.AuthnContextMappings {
		if m.Level == level {
			return m.ClassRef
		}
	}
	return ""
}

// ClassRefForLabel returns the AuthnContextClassRef configured for the
// given mapping label (e.g. DefaultAuthnContextLabel), or "" if none
// matches. Unlike ClassRefForLevel, which resolves a caller-supplied
// AuthLevel, this resolves the SP's own designated default entry.
func (c *ExtendedConfig) ClassRefForLabel(label string) string {
	for _, m := range c.AuthnContextMappings {
		if m.Label == label {
			return m.ClassRef
		}
	}
	return ""
}

// LevelForClassRef is the inverse of ClassRefForLevel, used when surfacing
// a validated AuthnResponse's AuthnContextClassRef back to the host as an
// AuthLevel.
func (c *ExtendedConfig) LevelForClassRef(classRef string) (string, bool) {
	for _, m := range c.AuthnContextMappings {
		if m.ClassRef == classRef {
			return m.Level, true
		}
	}
	return "", false
}

// RelayStateAllowed reports whether relayState exactly matches an entry of
// RelayStateUrlList. An empty relayState is always allowed.
func (c *ExtendedConfig) RelayStateAllowed(relayState string) bool {
	if relayState == "" {
		return true
	}
	for _, allowed := range c.RelayStateUrlList {
		if allowed == relayState {
			return true
		}
	}
	return false
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseIntDefault is a small helper kept for config fields sourced as
// strings (e.g. when layered on top of flag/env parsing at the host).
func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
