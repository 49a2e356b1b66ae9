package crypto

import (
	"context"
	"encoding/base64"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/internal/domain/service"
	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

var _ service.TicketCodec = (*TicketCodec)(nil)

// cookieEncoding rejects padding and non-canonical trailing bits.
var cookieEncoding = base64.RawURLEncoding.Strict()

// TicketCodec converts tickets to and from opaque cookie values.
type TicketCodec struct {
	keys      service.KeyRing
	protector *Protector
}

// NewTicketCodec creates a codec that protects tickets with the ring's current key.
func NewTicketCodec(keys service.KeyRing, protector *Protector) *TicketCodec {
	return &TicketCodec{keys: keys, protector: protector}
}

// Encode serializes ticket, seals it under the current key and returns the cookie value.
func (c *TicketCodec) Encode(ctx context.Context, ticket *models.Ticket) (string, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "TicketCodec.Encode")
	defer span.End()

	payload, err := SerializeTicket(ticket)
	if err != nil {
		span.SetStatus(codes.Error, string(errors.KindOf(err)))
		return "", err
	}

	key, err := c.keys.CurrentKey()
	if err != nil {
		span.SetStatus(codes.Error, string(errors.KindOf(err)))
		return "", err
	}
	span.SetAttributes(attribute.String("key.id", key.ID.String()))

	envelope, err := c.protector.Seal(key, payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	value := cookieEncoding.EncodeToString(envelope)
	if len(value) > constants.MaxCookieValueLength {
		return "", errors.ErrInvalidIdentity("ticket too large for a cookie")
	}
	return value, nil
}

// Decode authenticates a cookie value and returns its ticket. Expiry is not checked here.
func (c *TicketCodec) Decode(ctx context.Context, cookie string) (*models.Ticket, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "TicketCodec.Decode")
	defer span.End()

	ticket, err := c.decode(cookie)
	if err != nil {
		span.SetStatus(codes.Error, string(errors.KindOf(err)))
		return nil, err
	}
	return ticket, nil
}

func (c *TicketCodec) decode(cookie string) (*models.Ticket, error) {
	if cookie == "" {
		return nil, errors.ErrMalformedCookie("empty cookie")
	}
	if len(cookie) > constants.MaxCookieValueLength*2 {
		return nil, errors.ErrMalformedCookie("cookie too long")
	}

	envelope, err := cookieEncoding.DecodeString(cookie)
	if err != nil {
		return nil, errors.ErrMalformedCookie("invalid base64url encoding")
	}

	keyID, err := ParseEnvelopeKeyID(envelope)
	if err != nil {
		return nil, err
	}

	key, err := c.keys.KeyByVersion(keyID)
	if err != nil {
		return nil, err
	}

	payload, err := c.protector.Open(key, envelope)
	if err != nil {
		return nil, err
	}

	return DeserializeTicket(payload)
}

// InspectKeyID returns the key id a cookie claims to be protected with, without decrypting it.
func InspectKeyID(cookie string) (string, error) {
	envelope, err := cookieEncoding.DecodeString(cookie)
	if err != nil {
		return "", errors.ErrMalformedCookie("invalid base64url encoding")
	}
	id, err := ParseEnvelopeKeyID(envelope)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
