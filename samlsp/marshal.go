package samlsp

import (
	"encoding/xml"

	"github.com/fedletgo/saml"
)

// marshalXML serializes a protocol struct with encoding/xml. No XML
// declaration header is prepended.
func marshalXML(v interface{}) ([]byte, error) {
	raw, err := xml.Marshal(v)
	if err != nil {
		return nil, saml.NewError(saml.ErrConfiguration, "cannot marshal SAML message", err)
	}
	return raw, nil
}
