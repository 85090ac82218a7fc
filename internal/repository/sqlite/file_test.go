package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/notecode/internal/apperror"
	"github.com/sakif/notecode/internal/model"
	"github.com/sakif/notecode/internal/repository"
)

func strPtr(s string) *string { return &s }

// newTestDB creates a throwaway in-memory database. t.Cleanup closes it when
// the test (or subtest) finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user row so files have a valid owner to reference.
func createTestUser(t *testing.T, db *DB, email string) *model.User {
	t.Helper()
	user := &model.User{Email: email, Login: "tester"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestFile inserts a file owned by ownerID and fails the test on error.
func createTestFile(t *testing.T, db *DB, ownerID, name string) *model.File {
	t.Helper()
	file := &model.File{
		Name:     name,
		Owner:    ownerID,
		Language: "python",
		Code:     "print('hi')",
	}
	if err := db.Create(context.Background(), file); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return file
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	file := &model.File{
		Name:     "two-sum.py",
		Owner:    user.ID,
		Language: "python",
		Code:     "print('hello')",
	}

	if err := db.Create(context.Background(), file); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Create fills these in through the pointer.
	if file.ID == "" {
		t.Error("Create() did not set file.ID")
	}
	if file.CreatedAt.IsZero() {
		t.Error("Create() did not set file.CreatedAt")
	}
	if file.UpdatedAt.IsZero() {
		t.Error("Create() did not set file.UpdatedAt")
	}
}

func TestCreate_VerifyPersistence(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	original := &model.File{
		Name:     "notes.py",
		Owner:    user.ID,
		Language: "python",
		Code:     "x = 1",
		Algo:     "constant assignment",
		Input:    "unused",
		Output:   "",
	}
	if err := db.Create(context.Background(), original); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := db.GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Name != original.Name {
		t.Errorf("Name = %q, want %q", found.Name, original.Name)
	}
	if found.Owner != user.ID {
		t.Errorf("Owner = %q, want %q", found.Owner, user.ID)
	}
	if found.Code != original.Code {
		t.Errorf("Code = %q, want %q", found.Code, original.Code)
	}
	if found.Algo != original.Algo {
		t.Errorf("Algo = %q, want %q", found.Algo, original.Algo)
	}
	if found.Input != original.Input {
		t.Errorf("Input = %q, want %q", found.Input, original.Input)
	}
}

// =========================================================================
// GET BY ID TESTS
// =========================================================================

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("GetByID() expected error for missing file")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListByOwner_OnlyOwnFiles(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestFile(t, db, alice.ID, "alice-1.py")
	createTestFile(t, db, alice.ID, "alice-2.py")
	createTestFile(t, db, bob.ID, "bob-1.py")

	files, err := db.ListByOwner(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("ListByOwner() returned %d files, want 2", len(files))
	}
	for _, f := range files {
		if f.Owner != alice.ID {
			t.Errorf("ListByOwner() returned file owned by %q", f.Owner)
		}
	}
}

func TestListByOwner_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	first := createTestFile(t, db, user.ID, "first.py")
	second := createTestFile(t, db, user.ID, "second.py")

	// Touch the first file so it becomes the most recently updated.
	_, err := db.Update(context.Background(), first.ID, user.ID, repository.FileUpdate{
		Code: strPtr("print('updated')"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	files, err := db.ListByOwner(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("ListByOwner() returned %d files, want 2", len(files))
	}
	if files[0].ID != first.ID {
		t.Errorf("files[0] = %q, want the just-updated file %q", files[0].ID, first.ID)
	}
	if files[1].ID != second.ID {
		t.Errorf("files[1] = %q, want %q", files[1].ID, second.ID)
	}
}

func TestListByOwner_Empty(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	files, err := db.ListByOwner(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	// Empty list, not nil — the handler encodes this as [] rather than null.
	if files == nil {
		t.Error("ListByOwner() returned nil, want empty slice")
	}
	if len(files) != 0 {
		t.Errorf("ListByOwner() returned %d files, want 0", len(files))
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	file := createTestFile(t, db, user.ID, "before.py")

	createdAt := file.CreatedAt

	updated, err := db.Update(context.Background(), file.ID, user.ID, repository.FileUpdate{
		Name:   strPtr("after.py"),
		Code:   strPtr("print('after')"),
		Output: strPtr("after"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "after.py" {
		t.Errorf("Update() returned Name = %q, want %q", updated.Name, "after.py")
	}

	found, err := db.GetByID(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.Name != "after.py" {
		t.Errorf("Name = %q, want %q", found.Name, "after.py")
	}
	if found.Output != "after" {
		t.Errorf("Output = %q, want %q", found.Output, "after")
	}
	if !found.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt changed from %v to %v", createdAt, found.CreatedAt)
	}
	if found.UpdatedAt.Before(createdAt) {
		t.Errorf("UpdatedAt %v is before CreatedAt %v", found.UpdatedAt, createdAt)
	}
}

func TestUpdate_WrongOwnerAffectsNothing(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	file := createTestFile(t, db, alice.ID, "alice.py")

	// Same file ID, wrong owner: the guarded statement must not match.
	_, err := db.Update(context.Background(), file.ID, bob.ID, repository.FileUpdate{
		Code: strPtr("stolen"),
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}

	// Alice's file is untouched.
	found, err := db.GetByID(context.Background(), file.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Code != file.Code {
		t.Errorf("Code = %q, file was modified through wrong-owner update", found.Code)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	_, err := db.Update(context.Background(), "never-existed", user.ID, repository.FileUpdate{
		Code: strPtr("pass"),
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// TestUpdate_SetsOnlyPatchedColumns guards against the lost-update shape:
// a caller who read the file earlier patches just the algo, while the code
// column changed underneath them. The algo patch must not write code at
// all, so the newer code survives.
func TestUpdate_SetsOnlyPatchedColumns(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	file := createTestFile(t, db, user.ID, "race.py") // code starts as print('hi')

	// Another request lands a code change first.
	if _, err := db.Update(context.Background(), file.ID, user.ID, repository.FileUpdate{
		Code: strPtr("print('newer')"),
	}); err != nil {
		t.Fatalf("Update(code) error = %v", err)
	}

	// The stale caller patches only the algo.
	updated, err := db.Update(context.Background(), file.ID, user.ID, repository.FileUpdate{
		Algo: strPtr("brute force"),
	})
	if err != nil {
		t.Fatalf("Update(algo) error = %v", err)
	}

	if updated.Code != "print('newer')" {
		t.Errorf("Code = %q, want %q (algo patch overwrote the code column)", updated.Code, "print('newer')")
	}
	if updated.Algo != "brute force" {
		t.Errorf("Algo = %q, want %q", updated.Algo, "brute force")
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")
	file := createTestFile(t, db, user.ID, "doomed.py")

	if err := db.Delete(context.Background(), file.ID, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := db.GetByID(context.Background(), file.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDelete_WrongOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	file := createTestFile(t, db, alice.ID, "alice.py")

	err := db.Delete(context.Background(), file.ID, bob.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}

	// Still there.
	if _, err := db.GetByID(context.Background(), file.ID); err != nil {
		t.Errorf("GetByID() error = %v, file should have survived", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	err := db.Delete(context.Background(), "never-existed", user.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

// TestUpdatedAtOrderingSurvivesReload guards the index-backed ordering: write
// three files with distinct update times and confirm the list comes back
// newest first after each touch.
func TestUpdatedAtOrderingSurvivesReload(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@example.com")

	a := createTestFile(t, db, user.ID, "a.py")
	b := createTestFile(t, db, user.ID, "b.py")
	c := createTestFile(t, db, user.ID, "c.py")

	// Touch in a different order than creation: b, then a.
	time.Sleep(5 * time.Millisecond)
	if _, err := db.Update(context.Background(), b.ID, user.ID, repository.FileUpdate{
		Algo: strPtr("touched"),
	}); err != nil {
		t.Fatalf("Update(b) error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := db.Update(context.Background(), a.ID, user.ID, repository.FileUpdate{
		Algo: strPtr("touched"),
	}); err != nil {
		t.Fatalf("Update(a) error = %v", err)
	}

	files, err := db.ListByOwner(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("ListByOwner() returned %d files, want 3", len(files))
	}

	want := []string{a.ID, b.ID, c.ID}
	for i, id := range want {
		if files[i].ID != id {
			t.Errorf("files[%d] = %q, want %q", i, files[i].ID, id)
		}
	}
}
