package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrCodeEU/facepass-liveness/pkg/liveness"
)

func TestNewFileStorage(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name       string
		dataDir    string
		encryption bool
		wantErr    bool
	}{
		{
			name:       "without encryption",
			dataDir:    filepath.Join(tmpDir, "test1"),
			encryption: false,
			wantErr:    false,
		},
		{
			name:       "with encryption",
			dataDir:    filepath.Join(tmpDir, "test2"),
			encryption: true,
			wantErr:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := NewFileStorage(tt.dataDir, tt.encryption)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFileStorage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if fs == nil {
				t.Error("NewFileStorage returned nil")
			}

			sessionsDir := filepath.Join(tt.dataDir, "sessions")
			if _, err := os.Stat(sessionsDir); os.IsNotExist(err) {
				t.Error("sessions directory was not created")
			}
		})
	}
}

func TestFileStorage_SaveAndLoadSession(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		name := "plain"
		if encrypted {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			tmpDir := t.TempDir()
			fs, err := NewFileStorage(tmpDir, encrypted)
			if err != nil {
				t.Fatalf("failed to create storage: %v", err)
			}

			rec := createTestRecord("session-1", time.Now())
			if err := fs.SaveSession(rec); err != nil {
				t.Fatalf("SaveSession failed: %v", err)
			}

			loaded, err := fs.LoadSession("session-1")
			if err != nil {
				t.Fatalf("LoadSession failed: %v", err)
			}

			if loaded.ID != rec.ID || !loaded.Passed {
				t.Errorf("unexpected record %+v", loaded)
			}
			if len(loaded.Sequence) != 5 || loaded.Sequence[3] != liveness.GestureNod {
				t.Errorf("expected default sequence, got %v", loaded.Sequence)
			}
			if loaded.Progress != 100 || loaded.Frames != 42 {
				t.Errorf("unexpected progress %f frames %d", loaded.Progress, loaded.Frames)
			}
			if loaded.Metadata["source"] != "test" {
				t.Errorf("expected metadata to round-trip, got %v", loaded.Metadata)
			}
			if loaded.Duration() != 3*time.Second {
				t.Errorf("expected duration 3s, got %v", loaded.Duration())
			}

			raw, err := os.ReadFile(filepath.Join(tmpDir, "sessions", "session-1"+fs.ext()))
			if err != nil {
				t.Fatalf("record file missing: %v", err)
			}
			if encrypted == strings.Contains(string(raw), "session-1") {
				t.Errorf("encrypted=%v but plaintext visibility mismatched", encrypted)
			}
		})
	}
}

func TestFileStorage_SaveSession_Overwrites(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	rec := createTestRecord("again", time.Now())
	_ = fs.SaveSession(rec)
	rec.Passed = false
	rec.Reason = "TIMEOUT"
	if err := fs.SaveSession(rec); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	loaded, err := fs.LoadSession("again")
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if loaded.Passed || loaded.Reason != "TIMEOUT" {
		t.Errorf("expected overwritten record, got %+v", loaded)
	}
}

func TestFileStorage_LoadSession_NotFound(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	if _, err := fs.LoadSession("nonexistent"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFileStorage_InvalidID(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	for _, id := range []string{"", ".", "..", "../escape", `a\b`} {
		if err := fs.SaveSession(SessionRecord{ID: id}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("SaveSession(%q): expected ErrInvalidID, got %v", id, err)
		}
		if _, err := fs.LoadSession(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("LoadSession(%q): expected ErrInvalidID, got %v", id, err)
		}
		if fs.SessionExists(id) {
			t.Errorf("SessionExists(%q) should be false", id)
		}
	}
}

func TestFileStorage_DeleteSession(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), false)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	_ = fs.SaveSession(createTestRecord("to-delete", time.Now()))
	if !fs.SessionExists("to-delete") {
		t.Fatal("session should exist before deletion")
	}

	if err := fs.DeleteSession("to-delete"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if fs.SessionExists("to-delete") {
		t.Error("session should not exist after deletion")
	}

	if err := fs.DeleteSession("to-delete"); err != ErrSessionNotFound {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFileStorage_ListSessions(t *testing.T) {
	tmpDir := t.TempDir()
	fs, err := NewFileStorage(tmpDir, true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	// Empty list initially
	records, err := fs.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty list, got %d records", len(records))
	}

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"old", "newest", "middle"} {
		offset := []time.Duration{0, 2 * time.Hour, time.Hour}[i]
		if err := fs.SaveSession(createTestRecord(id, base.Add(offset))); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	// Noise that must be skipped
	_ = os.WriteFile(filepath.Join(tmpDir, "sessions", "plain.json"), []byte("{}"), 0600)
	_ = os.WriteFile(filepath.Join(tmpDir, "sessions", "broken.enc"), []byte("garbage"), 0600)
	_ = os.Mkdir(filepath.Join(tmpDir, "sessions", "dir.enc"), 0700)

	records, err = fs.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.ID)
	}
	if strings.Join(got, ",") != "newest,middle,old" {
		t.Errorf("expected newest first, got %v", got)
	}

	ids, err := fs.ListSessionIDs()
	if err != nil {
		t.Fatalf("ListSessionIDs failed: %v", err)
	}
	if len(ids) != 4 {
		t.Errorf("expected 4 ids including the broken record, got %v", ids)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	plaintext := []byte("This is a test message for encryption")

	ciphertext, err := fs.encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if string(ciphertext) == string(plaintext) {
		t.Error("ciphertext should differ from plaintext")
	}

	decrypted, err := fs.decrypt(ciphertext)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("decrypted text doesn't match: got %s, want %s", string(decrypted), string(plaintext))
	}
}

func TestDecrypt_InvalidData(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir(), true)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	// Too short
	if _, err := fs.decrypt([]byte("short")); err != ErrEncryption {
		t.Errorf("expected ErrEncryption for short data, got %v", err)
	}

	// Invalid ciphertext
	if _, err := fs.decrypt(make([]byte, 100)); err != ErrEncryption {
		t.Errorf("expected ErrEncryption for invalid data, got %v", err)
	}
}

// createTestRecord returns a passed session that ran for three seconds.
func createTestRecord(id string, started time.Time) SessionRecord {
	return SessionRecord{
		ID:         id,
		Passed:     true,
		Sequence:   liveness.DefaultSequence(),
		Completed:  5,
		Progress:   100,
		Frames:     42,
		Source:     "replay",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Metadata:   map[string]string{"source": "test"},
	}
}

func BenchmarkFileStorage_SaveSession(b *testing.B) {
	fs, _ := NewFileStorage(b.TempDir(), false)
	rec := createTestRecord("bench", time.Now())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = fs.SaveSession(rec)
	}
}

func BenchmarkFileStorage_LoadSession(b *testing.B) {
	fs, _ := NewFileStorage(b.TempDir(), false)
	_ = fs.SaveSession(createTestRecord("bench", time.Now()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = fs.LoadSession("bench")
	}
}

func BenchmarkEncryptDecrypt(b *testing.B) {
	fs, _ := NewFileStorage(b.TempDir(), true)
	data := []byte("benchmark encryption data that is reasonably sized")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		encrypted, _ := fs.encrypt(data)
		_, _ = fs.decrypt(encrypted)
	}
}
