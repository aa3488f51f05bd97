package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/pidtune/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "pidtune.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_Users(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUser(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("GetUser(missing) = %v, %v", got, err)
	}

	now := time.Unix(1_700_000_000, 0)
	user := &domain.User{UserID: "anon_1", Username: "anon-1", LastSeenAt: now, CreatedAt: now, UpdatedAt: now}
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	got, err = s.GetUser(ctx, "anon_1")
	if err != nil || got == nil {
		t.Fatalf("GetUser = %v, %v", got, err)
	}
	if got.Username != "anon-1" || !got.CreatedAt.Equal(now) {
		t.Errorf("user = %+v", got)
	}

	later := now.Add(time.Hour)
	if err := s.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen: %v", err)
	}
	got, _ = s.GetUser(ctx, "anon_1")
	if !got.LastSeenAt.Equal(later) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, later)
	}
}

func TestSQLiteStore_Settings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, "anon_1", domain.SettingAPIKey); err != nil || ok {
		t.Fatalf("GetSetting(missing) ok=%v err=%v", ok, err)
	}

	if err := s.PutSetting(ctx, "anon_1", domain.SettingAPIKey, "sk-one"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := s.PutSetting(ctx, "anon_1", domain.SettingAPIKey, "sk-two"); err != nil {
		t.Fatalf("PutSetting overwrite: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, "anon_1", domain.SettingAPIKey)
	if err != nil || !ok || v != "sk-two" {
		t.Errorf("GetSetting = %q, %v, %v", v, ok, err)
	}

	// Settings are per user.
	if _, ok, _ := s.GetSetting(ctx, "anon_2", domain.SettingAPIKey); ok {
		t.Error("setting leaked to another user")
	}

	if err := s.DeleteSetting(ctx, "anon_1", domain.SettingAPIKey); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	if _, ok, _ := s.GetSetting(ctx, "anon_1", domain.SettingAPIKey); ok {
		t.Error("setting still present after delete")
	}
	if err := s.DeleteSetting(ctx, "anon_1", domain.SettingAPIKey); err != nil {
		t.Errorf("deleting a missing key: %v", err)
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNewSQLite_AppliesPragmas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var timeout int
	if err := s.db.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}

	var sync int
	if err := s.db.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatalf("synchronous: %v", err)
	}
	if sync != 1 {
		t.Errorf("synchronous = %d, want 1 (NORMAL)", sync)
	}
}

func TestLoadCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		stored   map[string]string
		fallback domain.Credentials
		want     domain.Credentials
	}{
		{
			name: "nothing configured",
			want: domain.Credentials{Model: domain.DefaultModel},
		},
		{
			name:     "operator fallback",
			fallback: domain.Credentials{APIKey: "sk-env", Model: "gpt-4.1"},
			want:     domain.Credentials{APIKey: "sk-env", Model: "gpt-4.1"},
		},
		{
			name:     "user values win",
			stored:   map[string]string{domain.SettingAPIKey: "sk-user", domain.SettingModel: "o3"},
			fallback: domain.Credentials{APIKey: "sk-env", Model: "gpt-4.1"},
			want:     domain.Credentials{APIKey: "sk-user", Model: "o3"},
		},
		{
			name:   "key only",
			stored: map[string]string{domain.SettingAPIKey: "sk-user"},
			want:   domain.Credentials{APIKey: "sk-user", Model: domain.DefaultModel},
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := "anon_" + string(rune('a'+i))
			for k, v := range tt.stored {
				if err := s.PutSetting(ctx, userID, k, v); err != nil {
					t.Fatalf("PutSetting: %v", err)
				}
			}
			got, err := LoadCredentials(ctx, s, userID, tt.fallback)
			if err != nil {
				t.Fatalf("LoadCredentials: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
