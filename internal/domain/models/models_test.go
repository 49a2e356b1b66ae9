package models_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/constants"
)

func alicePrincipal() *models.Principal {
	return models.NewPrincipal(models.Identity{
		AuthenticationType: constants.AuthenticationTypeCookie,
		NameClaimType:      constants.ClaimTypeEmail,
		RoleClaimType:      constants.ClaimTypeRole,
		Claims: models.NewClaimSet(
			models.NewClaim(constants.ClaimTypeEmail, "alice@example.com", constants.DefaultClaimIssuer),
			models.NewClaim(constants.ClaimTypeRole, "admin", constants.DefaultClaimIssuer),
		),
	})
}

func TestPrincipal_Accessors(t *testing.T) {
	p := alicePrincipal()

	assert.True(t, p.IsAuthenticated())
	assert.Equal(t, "alice@example.com", p.Name())
	assert.Equal(t, "alice@example.com", p.Email())
	assert.True(t, p.IsInRole("admin"))
	assert.False(t, p.IsInRole("auditor"))

	c, ok := p.FindFirst(constants.ClaimTypeEmail)
	assert.True(t, ok)
	assert.Equal(t, constants.DefaultClaimIssuer, c.OriginalIssuer)
	assert.Equal(t, constants.ClaimValueTypeString, c.ValueType)

	_, ok = p.FindFirst(constants.ClaimTypeName)
	assert.False(t, ok)
}

func TestPrincipal_NotAuthenticated(t *testing.T) {
	var nilPrincipal *models.Principal
	assert.False(t, nilPrincipal.IsAuthenticated())
	assert.False(t, models.NewPrincipal(models.Identity{}).IsAuthenticated())
}

func TestPrincipal_Equal(t *testing.T) {
	assert.True(t, alicePrincipal().Equal(alicePrincipal()))

	bob := models.NewPrincipal(models.Identity{
		AuthenticationType: constants.AuthenticationTypeCookie,
		NameClaimType:      constants.ClaimTypeEmail,
		RoleClaimType:      constants.ClaimTypeRole,
		Claims:             models.NewClaimSet(models.NewClaim(constants.ClaimTypeEmail, "bob@example.com", "urn:net-core")),
	})
	assert.False(t, alicePrincipal().Equal(bob))
}

func TestClaimSet_IsolatedFromCaller(t *testing.T) {
	claims := []models.Claim{models.NewClaim(constants.ClaimTypeEmail, "alice@example.com", "urn:net-core")}
	set := models.NewClaimSet(claims...)
	claims[0].Value = "mallory@example.com"

	all := set.All()
	all[0].Value = "eve@example.com"

	c, _ := set.FindFirst(constants.ClaimTypeEmail)
	assert.Equal(t, "alice@example.com", c.Value)
}

func TestClaimSet_FillsOriginalIssuer(t *testing.T) {
	set := models.NewClaimSet(models.Claim{Type: "t", Value: "v", Issuer: "urn:a"})
	c, _ := set.FindFirst("t")
	assert.Equal(t, "urn:a", c.OriginalIssuer)
	assert.Len(t, set.FindAll("t"), 1)
}

func TestTicket_ExpiredAt(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticket := &models.Ticket{IssuedAt: issued, ExpiresAt: issued.Add(20 * time.Minute)}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at issue", issued, false},
		{"one nanosecond before expiry", ticket.ExpiresAt.Add(-time.Nanosecond), false},
		{"at expiry", ticket.ExpiresAt, true},
		{"after expiry", ticket.ExpiresAt.Add(time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ticket.ExpiredAt(tt.now))
		})
	}

	assert.Equal(t, 20*time.Minute, ticket.Lifetime())
	assert.Equal(t, time.Duration(0), ticket.Remaining(ticket.ExpiresAt.Add(time.Hour)))
	assert.Equal(t, 5*time.Minute, ticket.Remaining(issued.Add(15*time.Minute)))
}

func TestKeyEntry_Status(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	base := models.KeyEntry{
		ID:          uuid.New(),
		ActivatesAt: now.Add(-time.Hour),
		ExpiresAt:   now.Add(time.Hour),
	}

	tests := []struct {
		name   string
		mutate func(k *models.KeyEntry)
		status constants.KeyStatus
		usable bool
	}{
		{"active", func(k *models.KeyEntry) {}, constants.KeyStatusActive, true},
		{"pending", func(k *models.KeyEntry) { k.ActivatesAt = now.Add(time.Minute) }, constants.KeyStatusPending, false},
		{"activates exactly now", func(k *models.KeyEntry) { k.ActivatesAt = now }, constants.KeyStatusActive, true},
		{"expires exactly now", func(k *models.KeyEntry) { k.ExpiresAt = now }, constants.KeyStatusExpired, false},
		{"revoked", func(k *models.KeyEntry) { k.Revoked = true }, constants.KeyStatusRevoked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := base
			tt.mutate(&k)
			assert.Equal(t, tt.status, k.Status(now))
			assert.Equal(t, tt.usable, k.Usable(now))
		})
	}
}

func TestKeyEntry_MetadataOmitsMaterial(t *testing.T) {
	k := &models.KeyEntry{ID: uuid.New(), Material: []byte("0123456789abcdef0123456789abcdef"), Algorithm: constants.KeyAlgorithm}
	md := k.Metadata()
	assert.Equal(t, k.ID, md.ID)
	assert.Equal(t, constants.KeyAlgorithm, md.Algorithm)
}
