package snapshot

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mmynk/billbook/internal/models"
)

// Envelope parameters.
const (
	Algorithm       = "AES-256-GCM"
	EnvelopeVersion = 1
	KDFIterations   = 210_000

	keySize  = 32
	saltSize = 16
)

// ErrPassphraseRequired is returned by Open for an encrypted envelope when
// no passphrase was given.
var ErrPassphraseRequired = errors.New("snapshot: passphrase required")

// Encryption describes how an envelope's cipher text was produced. Binary
// fields are base64.
type Encryption struct {
	Algorithm  string `json:"algorithm"`
	IV         string `json:"iv"`
	Salt       string `json:"salt"`
	Version    int    `json:"version"`
	Iterations int    `json:"iterations"`
}

// Envelope is the on-disk form of a backup. Without Encryption, CipherText
// is merely the base64 snapshot JSON.
type Envelope struct {
	CipherText string      `json:"cipherText"`
	Encryption *Encryption `json:"encryption,omitempty"`
}

// Encrypted reports whether the envelope carries encryption parameters.
func (e *Envelope) Encrypted() bool {
	return e.Encryption != nil
}

// Seal wraps snap in an envelope, encrypting it when passphrase is not
// empty.
func Seal(ctx context.Context, snap *Snapshot, passphrase string) (*Envelope, error) {
	plain, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if passphrase == "" {
		return &Envelope{CipherText: base64.StdEncoding.EncodeToString(plain)}, nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(ctx, passphrase, salt, KDFIterations)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	return &Envelope{
		CipherText: base64.StdEncoding.EncodeToString(gcm.Seal(nil, iv, plain, nil)),
		Encryption: &Encryption{
			Algorithm:  Algorithm,
			IV:         base64.StdEncoding.EncodeToString(iv),
			Salt:       base64.StdEncoding.EncodeToString(salt),
			Version:    EnvelopeVersion,
			Iterations: KDFIterations,
		},
	}, nil
}

// Open unwraps env. A wrong passphrase, tampered cipher text or unknown
// parameters wrap models.ErrIntegrity. The returned snapshot is not yet
// verified; Manager.Restore does that.
func Open(ctx context.Context, env *Envelope, passphrase string) (*Snapshot, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: empty envelope", models.ErrIntegrity)
	}
	raw, err := base64.StdEncoding.DecodeString(env.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher text is not base64: %v", models.ErrIntegrity, err)
	}

	plain := raw
	if enc := env.Encryption; enc != nil {
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		if enc.Algorithm != Algorithm || enc.Version != EnvelopeVersion {
			return nil, fmt.Errorf("%w: unsupported encryption %s v%d", models.ErrIntegrity, enc.Algorithm, enc.Version)
		}
		if enc.Iterations <= 0 {
			return nil, fmt.Errorf("%w: invalid iteration count %d", models.ErrIntegrity, enc.Iterations)
		}
		salt, err := base64.StdEncoding.DecodeString(enc.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: salt is not base64: %v", models.ErrIntegrity, err)
		}
		iv, err := base64.StdEncoding.DecodeString(enc.IV)
		if err != nil {
			return nil, fmt.Errorf("%w: iv is not base64: %v", models.ErrIntegrity, err)
		}
		gcm, err := newGCM(ctx, passphrase, salt, enc.Iterations)
		if err != nil {
			return nil, err
		}
		if len(iv) != gcm.NonceSize() {
			return nil, fmt.Errorf("%w: iv has %d bytes, want %d", models.ErrIntegrity, len(iv), gcm.NonceSize())
		}
		plain, err = gcm.Open(nil, iv, raw, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: wrong passphrase or corrupted backup", models.ErrIntegrity)
		}
	}

	var snap Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot: %v", models.ErrIntegrity, err)
	}
	return &snap, nil
}

func newGCM(ctx context.Context, passphrase string, salt []byte, iterations int) (cipher.AEAD, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}
