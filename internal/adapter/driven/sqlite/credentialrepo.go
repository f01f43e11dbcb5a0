package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo stores secrets such as the GitHub token sealed with
// AES-256-GCM. The service name is bound as additional data, so a value
// copied to another service's row fails to open.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD // nil when no key was configured
	now  func() time.Time
}

// NewCredentialRepo creates a CredentialRepo. A nil key yields a repo whose
// Set and Get return driven.ErrEncryptionKeyNotSet; any other key must be
// 32 bytes long.
func NewCredentialRepo(db *DB, key []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db, now: time.Now}
	if key == nil {
		return repo, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("credential key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	repo.aead, err = cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init credential cipher: %w", err)
	}
	return repo, nil
}

// Set stores or replaces the credential for the given service.
func (r *CredentialRepo) Set(ctx context.Context, service, plaintext string) error {
	sealed, err := r.seal(service, plaintext)
	if err != nil {
		return err
	}

	_, err = r.db.Writer.ExecContext(ctx,
		`INSERT INTO credentials (service, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(service) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		service, sealed, formatTime(r.now()),
	)
	if err != nil {
		return fmt.Errorf("store %s credential: %w", service, err)
	}
	return nil
}

// Get returns the plaintext credential, or "" when none is stored.
func (r *CredentialRepo) Get(ctx context.Context, service string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	var sealed string
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM credentials WHERE service = ?`, service,
	).Scan(&sealed)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load %s credential: %w", service, err)
	}

	plaintext, err := r.open(service, sealed)
	if err != nil {
		return "", fmt.Errorf("load %s credential: %w", service, err)
	}
	return plaintext, nil
}

// Delete removes the credential for the given service. Deleting a missing
// credential is not an error.
func (r *CredentialRepo) Delete(ctx context.Context, service string) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM credentials WHERE service = ?`, service); err != nil {
		return fmt.Errorf("delete %s credential: %w", service, err)
	}
	return nil
}

// seal returns base64(nonce || ciphertext).
func (r *CredentialRepo) seal(service, plaintext string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := r.aead.Seal(nonce, nonce, []byte(plaintext), []byte(service))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (r *CredentialRepo) open(service, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	n := r.aead.NonceSize()
	if len(raw) < n+r.aead.Overhead() {
		return "", errors.New("sealed value too short")
	}
	plaintext, err := r.aead.Open(nil, raw[:n], raw[n:], []byte(service))
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}
