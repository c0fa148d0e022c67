package imapc

import (
	"strings"

	"imapc/internal/wire"
)

// FetchRow is one message's worth of attributes from a FETCH, STORE, UID
// FETCH or UID STORE response stream.
type FetchRow struct {
	Message uint32
	UID     *uint32
	Size    *uint32

	attrs []wire.FetchAttr
	view  *wire.ResponseView
}

// Release returns the underlying buffer block to the pool. Optional; see
// ResponseView.
func (f *FetchRow) Release() {
	if f.view != nil {
		f.view.Release()
	}
}

func fetchRowFromResponse(v *wire.ResponseView) *FetchRow {
	r := v.Resp
	row := &FetchRow{Message: r.Seq, attrs: r.Fetch, view: v}
	for _, a := range r.Fetch {
		switch a.Name {
		case "UID":
			uid := uint32(a.Num)
			row.UID = &uid
		case "RFC822.SIZE":
			size := uint32(a.Num)
			row.Size = &size
		}
	}
	return row
}

// Flags returns the FLAGS attribute, if present.
func (f *FetchRow) Flags() ([]string, bool) {
	for _, a := range f.attrs {
		if a.Name == "FLAGS" {
			return a.Flags, true
		}
	}
	return nil, false
}

// InternalDate returns the raw INTERNALDATE text, if present.
func (f *FetchRow) InternalDate() (string, bool) {
	for _, a := range f.attrs {
		if a.Name == "INTERNALDATE" {
			return a.Date, true
		}
	}
	return "", false
}

// Envelope returns the raw ENVELOPE s-expression text, if present. Parsing
// it into structured fields is outside the core's scope (spec Non-goals:
// message rendering beyond raw bytes); callers that need it can hand this
// text to a MIME-aware layer of their own.
func (f *FetchRow) Envelope() (string, bool) {
	return f.rawAttr("ENVELOPE")
}

// BodyStructure returns the raw BODYSTRUCTURE/BODY s-expression text, if
// present (and not a body-section literal, which Section returns instead).
func (f *FetchRow) BodyStructure() (string, bool) {
	if s, ok := f.rawAttr("BODYSTRUCTURE"); ok {
		return s, true
	}
	return f.rawAttr("BODY")
}

func (f *FetchRow) rawAttr(name string) (string, bool) {
	for _, a := range f.attrs {
		if a.Name == name && a.Section == "" && a.Text != "" {
			return a.Text, true
		}
	}
	return "", false
}

// Section returns the raw bytes of a BODY[section] / BODY.PEEK[section]
// response, e.g. Section("") for BODY[], Section("TEXT") for BODY[TEXT],
// Section("HEADER.FIELDS (DATE FROM)") for a header-fields fetch.
func (f *FetchRow) Section(section string) ([]byte, bool) {
	for _, a := range f.attrs {
		if (a.Name == "BODY" || a.Name == "BODY.PEEK") && a.Text == "" && strings.EqualFold(a.Section, section) {
			return a.Bytes, true
		}
	}
	return nil, false
}

// RFC822 returns the raw RFC822/RFC822.TEXT/RFC822.HEADER literal, if the
// query requested one.
func (f *FetchRow) RFC822(which string) ([]byte, bool) {
	for _, a := range f.attrs {
		if a.Name == which {
			return a.Bytes, true
		}
	}
	return nil, false
}

// Raw exposes every attribute/value pair exactly as parsed, for callers
// that need an attribute this type does not name a convenience accessor
// for.
func (f *FetchRow) Raw() []wire.FetchAttr { return f.attrs }
