// Package ticket implements the shareable database link of spec §6:
// a magnet-style URI carrying a database ID and optional transport
// address hints, round-tripping through a compact string a peer can
// paste into a chat message or config file. Grounded on
// original_source/crates/lib/src/sync/ticket.rs, translated into Go's
// encoding.TextMarshaler/TextUnmarshaler idiom instead of Rust's
// Display/FromStr.
package ticket

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/eideticadb/eidetica/pkg/eerr"
	"github.com/eideticadb/eidetica/pkg/types"
)

const scheme = "eidetica:?"
const dbParam = "db"
const prParam = "pr"

// DatabaseTicket is a database ID plus zero or more transport address
// hints, encodable as a URI of the form
// "eidetica:?db=<id>&pr=<type>:<addr>&pr=...".
type DatabaseTicket struct {
	DatabaseID types.ID
	Addresses  []types.Address
}

// New returns a ticket with no address hints.
func New(id types.ID) DatabaseTicket {
	return DatabaseTicket{DatabaseID: id}
}

// WithAddresses returns a ticket carrying the given address hints.
func WithAddresses(id types.ID, addrs []types.Address) DatabaseTicket {
	return DatabaseTicket{DatabaseID: id, Addresses: addrs}
}

// AddAddress appends an address hint.
func (t *DatabaseTicket) AddAddress(addr types.Address) {
	t.Addresses = append(t.Addresses, addr)
}

// encodeQueryValue percent-encodes only the characters that are
// structurally significant inside a query string, plus the escape
// character itself. Everything else, including ':', passes through
// verbatim so tickets stay human-readable.
func encodeQueryValue(s string) string {
	if !strings.ContainsAny(s, "%&=#+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '%':
			b.WriteString("%25")
		case '&':
			b.WriteString("%26")
		case '=':
			b.WriteString("%3D")
		case '#':
			b.WriteString("%23")
		case '+':
			b.WriteString("%2B")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func encodeAddress(a types.Address) string {
	return fmt.Sprintf("%s:%s", a.TransportType, a.Address)
}

// decodeAddress splits on the first ':', returning false if value
// carries no separator (a malformed pr value is skipped, not an error,
// per spec §6's forward-compatibility rule).
func decodeAddress(value string) (types.Address, bool) {
	i := strings.IndexByte(value, ':')
	if i < 0 {
		return types.Address{}, false
	}
	return types.Address{TransportType: value[:i], Address: value[i+1:]}, true
}

// String renders t as a ticket URI.
func (t DatabaseTicket) String() string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString(dbParam)
	b.WriteByte('=')
	b.WriteString(encodeQueryValue(string(t.DatabaseID)))
	for _, addr := range t.Addresses {
		b.WriteByte('&')
		b.WriteString(prParam)
		b.WriteByte('=')
		b.WriteString(encodeQueryValue(encodeAddress(addr)))
	}
	return b.String()
}

// Parse decodes a ticket URI. The "db" parameter is mandatory;
// duplicates let the last occurrence win. Malformed "pr" values are
// skipped and unknown query parameters are ignored, both for forward
// compatibility with tickets produced by newer implementations.
func Parse(s string) (DatabaseTicket, error) {
	query, ok := strings.CutPrefix(s, scheme)
	if !ok {
		preview := s
		if len(preview) > 20 {
			preview = preview[:20]
		}
		return DatabaseTicket{}, eerr.Validation("ticket_parse", fmt.Sprintf("expected %q prefix, got: %s", scheme, preview))
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return DatabaseTicket{}, eerr.Wrap(eerr.KindValidation, "ticket_parse", "malformed ticket query string", err)
	}

	var t DatabaseTicket
	if dbs, ok := values[dbParam]; ok && len(dbs) > 0 {
		t.DatabaseID = types.ID(dbs[len(dbs)-1])
	} else {
		return DatabaseTicket{}, eerr.Validation("ticket_parse", fmt.Sprintf("ticket missing %q parameter", dbParam))
	}
	for _, v := range values[prParam] {
		if addr, ok := decodeAddress(v); ok {
			t.Addresses = append(t.Addresses, addr)
		}
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler so a DatabaseTicket
// serializes as its URI string wherever JSON/YAML expects text.
func (t DatabaseTicket) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *DatabaseTicket) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
