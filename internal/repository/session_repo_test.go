package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"waypost/internal/database"
	"waypost/internal/models"
	"waypost/internal/testutil"
)

func createTestUser(t *testing.T, users *UserRepository, email, username string) *models.User {
	t.Helper()
	user, err := users.CreateUser(context.Background(), email, username, "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return user
}

func TestCreateEnforcesSingleActiveSession(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "a@example.com", "a")
	meta := SessionMeta{UserAgent: "test", IPAddress: "127.0.0.1"}

	first, err := sessions.Create(ctx, user.ID, "token-one", meta, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	second, err := sessions.Create(ctx, user.ID, "token-two", meta, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	active, err := sessions.ListActiveForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActiveForUser() error = %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("got %d active sessions, want exactly 1", len(active))
	}
	if active[0].ID != second.ID {
		t.Errorf("active session = %d, want the newest (%d)", active[0].ID, second.ID)
	}

	// The first session must now be revoked, not merely superseded
	stale, err := sessions.GetByToken(ctx, first.Token)
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if stale == nil || stale.IsActive {
		t.Error("first session should still exist but be revoked")
	}
}

func TestCreateDoesNotTouchOtherUsers(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice@example.com", "alice")
	bob := createTestUser(t, users, "bob@example.com", "bob")
	meta := SessionMeta{}

	if _, err := sessions.Create(ctx, alice.ID, "alice-token", meta, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := sessions.Create(ctx, bob.ID, "bob-token", meta, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	aliceActive, err := sessions.ListActiveForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListActiveForUser() error = %v", err)
	}
	if len(aliceActive) != 1 {
		t.Errorf("alice has %d active sessions, want 1", len(aliceActive))
	}

	all, err := sessions.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d active sessions overall, want 2", len(all))
	}
}

func TestValidate(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "v@example.com", "v")
	meta := SessionMeta{UserAgent: "agent", IPAddress: "10.0.0.1"}

	session, err := sessions.Create(ctx, user.ID, "valid-token", meta, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	view, err := sessions.Validate(ctx, session.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if view == nil {
		t.Fatal("Validate() = nil, want session view")
	}
	if view.UserID != user.ID {
		t.Errorf("UserID = %d, want %d", view.UserID, user.ID)
	}
	if view.Username != "v" {
		t.Errorf("Username = %q, want v", view.Username)
	}
	if view.UserAgent != "agent" {
		t.Errorf("UserAgent = %q, want agent", view.UserAgent)
	}

	t.Run("bumps last_accessed", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		if _, err := sessions.Validate(ctx, session.Token); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		row, err := sessions.GetByToken(ctx, session.Token)
		if err != nil {
			t.Fatalf("GetByToken() error = %v", err)
		}
		if !row.LastAccessed.After(session.LastAccessed) {
			t.Error("last_accessed was not bumped by Validate")
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		view, err := sessions.Validate(ctx, "no-such-token")
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if view != nil {
			t.Error("Validate() should return nil for unknown token")
		}
	})

	t.Run("expired session", func(t *testing.T) {
		other := createTestUser(t, users, "exp@example.com", "exp")
		expired, err := sessions.Create(ctx, other.ID, "expired-token", meta, time.Now().Add(-time.Minute))
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		view, err := sessions.Validate(ctx, expired.Token)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if view != nil {
			t.Error("Validate() should return nil for expired session")
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		changed, err := sessions.Invalidate(ctx, session.Token)
		if err != nil {
			t.Fatalf("Invalidate() error = %v", err)
		}
		if !changed {
			t.Error("Invalidate() = false, want true for live session")
		}
		view, err := sessions.Validate(ctx, session.Token)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if view != nil {
			t.Error("Validate() should return nil for revoked session")
		}

		// A second invalidation is a no-op
		changed, err = sessions.Invalidate(ctx, session.Token)
		if err != nil {
			t.Fatalf("Invalidate() error = %v", err)
		}
		if changed {
			t.Error("Invalidate() = true on already-revoked session, want false")
		}
	})
}

func TestInvalidateAllForUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	user := createTestUser(t, users, "all@example.com", "all")
	if _, err := sessions.Create(ctx, user.ID, "tok", SessionMeta{}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	count, err := sessions.InvalidateAllForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("InvalidateAllForUser() error = %v", err)
	}
	if count != 1 {
		t.Errorf("InvalidateAllForUser() = %d, want 1", count)
	}

	active, err := sessions.ListActiveForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListActiveForUser() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("got %d active sessions after revoke-all, want 0", len(active))
	}
}

func TestDeleteExpiredOnlyRemovesUnusableRows(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := NewUserRepository(db)
	sessions := NewSessionRepository(db)
	ctx := context.Background()

	live := createTestUser(t, users, "live@example.com", "live")
	expired := createTestUser(t, users, "expired@example.com", "expired")
	revoked := createTestUser(t, users, "revoked@example.com", "revoked")

	liveSession, err := sessions.Create(ctx, live.ID, "live-token", SessionMeta{}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := sessions.Create(ctx, expired.ID, "expired-token", SessionMeta{}, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := sessions.Create(ctx, revoked.ID, "revoked-token", SessionMeta{}, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := sessions.Invalidate(ctx, "revoked-token"); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	deleted, err := sessions.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteExpired() = %d, want 2", deleted)
	}

	// The live session must survive the sweep and still validate
	view, err := sessions.Validate(ctx, liveSession.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if view == nil {
		t.Error("sweep deleted a session that validation would accept")
	}

	gone, err := sessions.GetByToken(ctx, "expired-token")
	if err != nil {
		t.Fatalf("GetByToken() error = %v", err)
	}
	if gone != nil {
		t.Error("expired session row should be deleted")
	}
}

// TestCreateRunsInOneTransaction pins the invalidate-then-insert pairing to a
// single transaction, the property that keeps concurrent logins from ending
// up with zero or two active sessions.
func TestCreateRunsInOneTransaction(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer mockDB.Close()

	db := &database.DB{DB: mockDB, Dialect: database.NewSQLiteDialect()}
	sessions := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions SET is_active").
		WithArgs(false, int64(7), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sessions").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	_, err = sessions.Create(context.Background(), 7, "tok", SessionMeta{}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
