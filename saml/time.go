package saml

import (
	"crypto/rand"
	"encoding/xml"
	"io"
	"time"
)

// TimeNow is the clock used for IssueInstant stamps and validity-window
// checks. Tests that depend on specific IssueInstant/NotBefore/NotOnOrAfter
// values can replace it.
var TimeNow = func() time.Time {
	return time.Now().UTC()
}

// RandReader is an exported source of randomness defaulting to crypto/rand.
// Nothing in this module reads it: NewID draws from uniuri, and the
// redirect signer uses crypto/rand directly.
var RandReader io.Reader = rand.Reader

const timeFormat = "2006-01-02T15:04:05.999Z"

// RelaxedTime is a time.Time that marshals to and unmarshals from the
// various formats IDPs use for SAML timestamps, which do not always agree
// on fractional-second precision or trailing zero elision.
type RelaxedTime time.Time

var timeFormats = []string{
	"2006-01-02T15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05Z07:00",
}

// MarshalXML implements xml.Marshaler.
func (t RelaxedTime) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.EncodeElement(time.Time(t).UTC().Format(timeFormat), start)
}

// MarshalXMLAttr implements xml.MarshalerAttr.
func (t RelaxedTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if time.Time(t).IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: time.Time(t).UTC().Format(timeFormat)}, nil
}

// UnmarshalXML implements xml.Unmarshaler.
func (t *RelaxedTime) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	return t.parse(s)
}

// UnmarshalXMLAttr implements xml.UnmarshalerAttr.
func (t *RelaxedTime) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*t = RelaxedTime(time.Time{})
		return nil
	}
	return t.parse(attr.Value)
}

// ToTime returns the underlying time.Time value.
func (t RelaxedTime) ToTime() time.Time {
	return time.Time(t)
}

func (t *RelaxedTime) parse(s string) error {
	var lastErr error
	for _, format := range timeFormats {
		parsed, err := time.Parse(format, s)
		if err == nil {
			*t = RelaxedTime(parsed)
			return nil
		}
		lastErr = err
	}
	return lastErr
}
