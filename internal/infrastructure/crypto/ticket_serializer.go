package crypto

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

const (
	ticketFormatVersion = 1

	maxStringLength = 4096
	maxClaims       = 64

	flagPersistent   byte = 1 << 0
	flagAllowRefresh byte = 1 << 1
	knownFlags            = flagPersistent | flagAllowRefresh
)

// SerializeTicket writes a ticket in the versioned binary layout.
func SerializeTicket(t *models.Ticket) ([]byte, error) {
	if t == nil || t.Principal == nil {
		return nil, errors.ErrInvalidIdentity("ticket has no principal")
	}
	identity := t.Principal.Identity()
	claims := identity.Claims.All()
	if len(claims) > maxClaims {
		return nil, errors.ErrInvalidIdentity(fmt.Sprintf("too many claims: %d", len(claims)))
	}

	buf := make([]byte, 0, 256)
	buf = append(buf, ticketFormatVersion)

	var err error
	for _, s := range []string{t.Scheme, identity.AuthenticationType, identity.NameClaimType, identity.RoleClaimType} {
		if buf, err = appendString(buf, s); err != nil {
			return nil, err
		}
	}

	buf = binary.AppendUvarint(buf, uint64(len(claims)))
	for _, c := range claims {
		original := c.OriginalIssuer
		if original == c.Issuer {
			original = ""
		}
		for _, s := range []string{c.Type, c.Value, c.ValueType, c.Issuer, original} {
			if buf, err = appendString(buf, s); err != nil {
				return nil, err
			}
		}
	}

	buf = appendTime(buf, t.IssuedAt)
	buf = appendTime(buf, t.ExpiresAt)

	var flags byte
	if t.IsPersistent {
		flags |= flagPersistent
	}
	if t.AllowRefresh {
		flags |= flagAllowRefresh
	}
	buf = append(buf, flags)

	return buf, nil
}

// appendTime writes Unix seconds followed by the nanosecond remainder.
func appendTime(buf []byte, t time.Time) []byte {
	buf = binary.AppendVarint(buf, t.Unix())
	return binary.AppendUvarint(buf, uint64(t.Nanosecond()))
}

func readTime(r *bytes.Reader, field string) (time.Time, error) {
	sec, err := binary.ReadVarint(r)
	if err != nil {
		return time.Time{}, errors.ErrMalformedCookie("truncated " + field)
	}
	nsec, err := binary.ReadUvarint(r)
	if err != nil {
		return time.Time{}, errors.ErrMalformedCookie("truncated " + field)
	}
	if nsec >= uint64(time.Second) {
		return time.Time{}, errors.ErrMalformedCookie(field + " nanoseconds out of range")
	}
	return time.Unix(sec, int64(nsec)).UTC(), nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	if len(s) > maxStringLength {
		return nil, errors.ErrInvalidIdentity(fmt.Sprintf("string field longer than %d bytes", maxStringLength))
	}
	if !utf8.ValidString(s) {
		return nil, errors.ErrInvalidIdentity("string field is not valid UTF-8")
	}
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...), nil
}

// DeserializeTicket parses the binary layout written by SerializeTicket.
// Any deviation, including trailing bytes, is reported as malformed_cookie.
func DeserializeTicket(data []byte) (*models.Ticket, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errors.ErrMalformedCookie("empty ticket")
	}
	if version != ticketFormatVersion {
		return nil, errors.ErrMalformedCookie(fmt.Sprintf("unsupported ticket version %d", version))
	}

	header := make([]string, 4)
	for i := range header {
		if header[i], err = readString(r); err != nil {
			return nil, err
		}
	}

	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.ErrMalformedCookie("truncated claim count")
	}
	if count > maxClaims {
		return nil, errors.ErrMalformedCookie(fmt.Sprintf("claim count %d exceeds limit", count))
	}

	claims := make([]models.Claim, 0, count)
	for i := uint64(0); i < count; i++ {
		var fields [5]string
		for j := range fields {
			if fields[j], err = readString(r); err != nil {
				return nil, err
			}
		}
		original := fields[4]
		if original == "" {
			original = fields[3]
		}
		claims = append(claims, models.Claim{
			Type:           fields[0],
			Value:          fields[1],
			ValueType:      fields[2],
			Issuer:         fields[3],
			OriginalIssuer: original,
		})
	}

	issued, err := readTime(r, "issued-at")
	if err != nil {
		return nil, err
	}
	expires, err := readTime(r, "expires-at")
	if err != nil {
		return nil, err
	}

	flags, err := r.ReadByte()
	if err != nil {
		return nil, errors.ErrMalformedCookie("truncated flags")
	}
	if flags&^knownFlags != 0 {
		return nil, errors.ErrMalformedCookie("unknown ticket flags")
	}
	if r.Len() != 0 {
		return nil, errors.ErrMalformedCookie("trailing bytes after ticket")
	}

	principal := models.NewPrincipal(models.Identity{
		AuthenticationType: header[1],
		NameClaimType:      header[2],
		RoleClaimType:      header[3],
		Claims:             models.NewClaimSet(claims...),
	})

	return &models.Ticket{
		Scheme:       header[0],
		Principal:    principal,
		IssuedAt:     issued,
		ExpiresAt:    expires,
		IsPersistent: flags&flagPersistent != 0,
		AllowRefresh: flags&flagAllowRefresh != 0,
	}, nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", errors.ErrMalformedCookie("truncated string length")
	}
	if n > maxStringLength || n > uint64(r.Len()) {
		return "", errors.ErrMalformedCookie("string length out of range")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", errors.ErrMalformedCookie("truncated string")
	}
	if !utf8.Valid(b) {
		return "", errors.ErrMalformedCookie("string is not valid UTF-8")
	}
	return string(b), nil
}
