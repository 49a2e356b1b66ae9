// Package crypto implements the shared key ring and the protection of authentication tickets.
// Every cooperating service must use the same purpose chain and key ring to read each other's cookies.
package crypto

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/turtacn/sharedcookie/internal/domain/models"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

// Envelope layout: magic(4) | key id(16) | header check(4) | nonce(24) | ciphertext+tag.
// The header check is the first bytes of SHA-256(magic | key id); a corrupted
// key id is reported as malformed instead of as an unknown key.
const (
	magicSize  = 4
	keyIDSize  = 16
	checkSize  = 4
	headerSize = magicSize + keyIDSize + checkSize
	nonceSize  = chacha20poly1305.NonceSizeX
	tagSize    = chacha20poly1305.Overhead

	// MinEnvelopeSize is the size of a protected empty payload.
	MinEnvelopeSize = headerSize + nonceSize + tagSize

	minMaterialSize = 16
)

var envelopeMagic = [magicSize]byte{0x09, 0xF0, 0xC9, 0xF0}

// Protector seals payloads under a key ring entry and a purpose chain.
// Subkeys are derived per key with HKDF-SHA256 and used with XChaCha20-Poly1305.
type Protector struct {
	purposes []string
	info     []byte
	ciphers  *cache.Cache
}

// NewProtector creates a protector bound to a purpose chain.
//
// Parameters:
//   - purposes: ordered purpose strings, shared by every cooperating service
//   - cacheTTL: how long a derived cipher is kept in memory
//
// Returns:
//   - *Protector: protector ready for concurrent use
//   - error: invalid_config when the purpose chain is empty
func NewProtector(purposes []string, cacheTTL time.Duration) (*Protector, error) {
	if len(purposes) == 0 {
		return nil, errors.ErrInvalidConfig("protection.purposes", "at least one purpose is required")
	}
	for _, p := range purposes {
		if p == "" {
			return nil, errors.ErrInvalidConfig("protection.purposes", "purposes must not be empty")
		}
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	cp := make([]string, len(purposes))
	copy(cp, purposes)

	return &Protector{
		purposes: cp,
		info:     purposeInfo(cp),
		ciphers:  cache.New(cacheTTL, 2*cacheTTL),
	}, nil
}

// Purposes returns the purpose chain.
func (p *Protector) Purposes() []string {
	cp := make([]string, len(p.purposes))
	copy(cp, p.purposes)
	return cp
}

// purposeInfo length-prefixes each purpose so ["ab","c"] and ["a","bc"] differ.
func purposeInfo(purposes []string) []byte {
	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	for _, purpose := range purposes {
		n := binary.PutUvarint(lenBuf[:], uint64(len(purpose)))
		buf.Write(lenBuf[:n])
		buf.WriteString(purpose)
	}
	return buf.Bytes()
}

// Seal encrypts plaintext under key and returns the complete envelope.
func (p *Protector) Seal(key *models.KeyEntry, plaintext []byte) ([]byte, error) {
	aead, err := p.cipherFor(key)
	if err != nil {
		return nil, err
	}

	var header [headerSize]byte
	copy(header[:], envelopeMagic[:])
	copy(header[magicSize:], key.ID[:])
	sum := headerCheck(header[:magicSize+keyIDSize])
	copy(header[magicSize+keyIDSize:], sum[:])

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, headerSize+nonceSize+len(plaintext)+tagSize)
	out = append(out, header[:]...)
	out = append(out, nonce[:]...)
	return aead.Seal(out, nonce[:], plaintext, header[:]), nil
}

// Open authenticates and decrypts an envelope produced by Seal under key.
func (p *Protector) Open(key *models.KeyEntry, envelope []byte) ([]byte, error) {
	id, err := ParseEnvelopeKeyID(envelope)
	if err != nil {
		return nil, err
	}
	if id != key.ID {
		return nil, errors.ErrTamperedOrWrongKey(key.ID.String())
	}

	aead, err := p.cipherFor(key)
	if err != nil {
		return nil, err
	}

	nonce := envelope[headerSize : headerSize+nonceSize]
	plaintext, err := aead.Open(nil, nonce, envelope[headerSize+nonceSize:], envelope[:headerSize])
	if err != nil {
		return nil, errors.ErrTamperedOrWrongKey(key.ID.String())
	}
	return plaintext, nil
}

// ParseEnvelopeKeyID validates the envelope framing and returns the cleartext key id.
func ParseEnvelopeKeyID(envelope []byte) (uuid.UUID, error) {
	if len(envelope) < MinEnvelopeSize {
		return uuid.Nil, errors.ErrMalformedCookie("envelope too short")
	}
	if !bytes.Equal(envelope[:magicSize], envelopeMagic[:]) {
		return uuid.Nil, errors.ErrMalformedCookie("bad magic header")
	}
	sum := headerCheck(envelope[:magicSize+keyIDSize])
	if subtle.ConstantTimeCompare(sum[:], envelope[magicSize+keyIDSize:headerSize]) != 1 {
		return uuid.Nil, errors.ErrMalformedCookie("header check mismatch")
	}
	id, err := uuid.FromBytes(envelope[magicSize : magicSize+keyIDSize])
	if err != nil {
		return uuid.Nil, errors.ErrMalformedCookie("bad key id")
	}
	return id, nil
}

func headerCheck(prefix []byte) [checkSize]byte {
	var out [checkSize]byte
	sum := sha256.Sum256(prefix)
	copy(out[:], sum[:checkSize])
	return out
}

// cipherFor returns the cached AEAD for key, deriving it on first use.
func (p *Protector) cipherFor(key *models.KeyEntry) (cipher.AEAD, error) {
	if len(key.Material) < minMaterialSize {
		return nil, errors.ErrNoKeyAvailable(fmt.Sprintf("key %s has %d bytes of material", key.ID, len(key.Material)))
	}

	cacheKey := cipherCacheKey(key)
	if cached, ok := p.ciphers.Get(cacheKey); ok {
		return cached.(cipher.AEAD), nil
	}

	subkey := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, key.Material, key.ID[:], p.info)
	if _, err := io.ReadFull(kdf, subkey); err != nil {
		return nil, fmt.Errorf("derive subkey: %w", err)
	}

	aead, err := chacha20poly1305.NewX(subkey)
	if err != nil {
		return nil, fmt.Errorf("new aead cipher: %w", err)
	}
	p.ciphers.SetDefault(cacheKey, aead)
	return aead, nil
}

// cipherCacheKey binds the cache entry to both the key id and its material.
func cipherCacheKey(key *models.KeyEntry) string {
	sum := sha256.Sum256(key.Material)
	return key.ID.String() + ":" + hex.EncodeToString(sum[:8])
}
