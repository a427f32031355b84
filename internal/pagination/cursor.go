// Package pagination encodes resume positions into opaque cursor tokens.
//
// Tokens carry no meaning for callers and their layout may change between
// versions; a token that cannot be decoded is reported as absent so that the
// caller starts from the first page instead of failing the request.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"shoporders/internal/models"
)

const (
	version  byte = 1
	tokenLen      = 1 + 8 + 4 + 8 // version, unix seconds, nanoseconds, id
)

var enc = base64.RawURLEncoding

// Encode serializes a position into a URL-safe token.
func Encode(p models.Position) string {
	buf := make([]byte, tokenLen)
	buf[0] = version
	binary.BigEndian.PutUint64(buf[1:9], uint64(p.CreatedAt.Unix()))
	binary.BigEndian.PutUint32(buf[9:13], uint32(p.CreatedAt.Nanosecond()))
	binary.BigEndian.PutUint64(buf[13:21], uint64(p.ID))
	return enc.EncodeToString(buf)
}

// Decode parses a token produced by Encode. ok is false for empty,
// malformed or foreign tokens.
func Decode(token string) (p models.Position, ok bool) {
	if token == "" || enc.DecodedLen(len(token)) != tokenLen {
		return models.Position{}, false
	}
	buf, err := enc.DecodeString(token)
	if err != nil || len(buf) != tokenLen || buf[0] != version {
		return models.Position{}, false
	}
	nsec := binary.BigEndian.Uint32(buf[9:13])
	if nsec >= uint32(time.Second) {
		return models.Position{}, false
	}
	id := int64(binary.BigEndian.Uint64(buf[13:21]))
	if id <= 0 {
		return models.Position{}, false
	}
	sec := int64(binary.BigEndian.Uint64(buf[1:9]))
	return models.Position{CreatedAt: time.Unix(sec, int64(nsec)).UTC(), ID: id}, true
}
