// Package storage provides secure storage for liveness session records.
// Records are encrypted at rest using NaCl secretbox.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
	"github.com/MrCodeEU/facepass-liveness/pkg/logging"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SessionRecord is the stored outcome of one liveness session.
type SessionRecord struct {
	ID         string             `json:"id"`
	Passed     bool               `json:"passed"`
	Reason     string             `json:"reason,omitempty"`
	Sequence   []liveness.Gesture `json:"sequence"`
	Completed  int                `json:"completed"`
	Progress   float64            `json:"progress"`
	Frames     int                `json:"frames"`
	Source     string             `json:"source,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
}

// Duration returns how long the session ran.
func (r SessionRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrSessionNotFound is returned when no record exists for an ID.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidID is returned for IDs that cannot name a record file.
var ErrInvalidID = errors.New("invalid session id")

// ErrStorageAccess is returned when storage cannot be accessed.
var ErrStorageAccess = errors.New("failed to access storage")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// FileStorage stores one file per session under <dataDir>/sessions.
type FileStorage struct {
	dataDir           string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// NewFileStorage creates a new FileStorage instance.
func NewFileStorage(dataDir string, encryptionEnabled bool) (*FileStorage, error) {
	fs := &FileStorage{
		dataDir:           dataDir,
		encryptionEnabled: encryptionEnabled,
	}

	// Derive encryption key from machine-specific information
	if encryptionEnabled {
		fs.encryptionKey = deriveKey()
	}

	if err := os.MkdirAll(fs.sessionsDir(), 0700); err != nil {
		return nil, fmt.Errorf("%w: failed to create sessions directory: %v", ErrStorageAccess, err)
	}

	return fs, nil
}

// deriveKey ties encrypted records to this machine and user.
func deriveKey() [KeySize]byte {
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facepass-liveness-v1-salt")

	return sha256.Sum256([]byte(identity.String()))
}

func (fs *FileStorage) sessionsDir() string {
	return filepath.Join(fs.dataDir, "sessions")
}

func (fs *FileStorage) ext() string {
	if fs.encryptionEnabled {
		return ".enc"
	}
	return ".json"
}

func (fs *FileStorage) sessionPath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(fs.sessionsDir(), id+fs.ext()), nil
}

// SaveSession writes a record, replacing any previous one with the same ID.
func (fs *FileStorage) SaveSession(rec SessionRecord) error {
	path, err := fs.sessionPath(rec.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if fs.encryptionEnabled {
		data, err = fs.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt session record: %w", err)
		}
	}

	// Write then rename so a crash never leaves a torn record.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	logging.Component("storage").WithField("session_id", rec.ID).Debug("Saved session record")
	return nil
}

// LoadSession reads the record with the given ID.
func (fs *FileStorage) LoadSession(id string) (*SessionRecord, error) {
	path, err := fs.sessionPath(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	if fs.encryptionEnabled {
		data, err = fs.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt session record: %w", err)
		}
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &rec, nil
}

// DeleteSession removes a record.
func (fs *FileStorage) DeleteSession(id string) error {
	path, err := fs.sessionPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	logging.Component("storage").WithField("session_id", id).Info("Deleted session record")
	return nil
}

// SessionExists checks if a record exists.
func (fs *FileStorage) SessionExists(id string) bool {
	path, err := fs.sessionPath(id)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ListSessionIDs returns the IDs of all stored records in this storage's
// format. Files written with the other encryption setting are skipped.
func (fs *FileStorage) ListSessionIDs() ([]string, error) {
	entries, err := os.ReadDir(fs.sessionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageAccess, err)
	}

	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, fs.ext()) {
			ids = append(ids, strings.TrimSuffix(name, fs.ext()))
		}
	}
	return ids, nil
}

// ListSessions loads every record, newest first. Unreadable records are
// logged and skipped.
func (fs *FileStorage) ListSessions() ([]SessionRecord, error) {
	ids, err := fs.ListSessionIDs()
	if err != nil {
		return nil, err
	}

	records := make([]SessionRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := fs.LoadSession(id)
		if err != nil {
			logging.Component("storage").WithError(err).WithField("session_id", id).Warn("Skipping unreadable session record")
			continue
		}
		records = append(records, *rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// encrypt encrypts data using NaCl secretbox.
func (fs *FileStorage) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}

	return secretbox.Seal(nonce[:], plaintext, &nonce, &fs.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (fs *FileStorage) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+secretbox.Overhead {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &fs.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}
