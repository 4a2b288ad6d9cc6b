package storage

import (
	"database/sql"
	"sort"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// openTestDB creates an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// getTableNames returns sorted table names from sqlite_master, excluding internal tables.
func getTableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan table name: %v", err)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getTableSQL returns sorted CREATE TABLE statements from sqlite_master.
func getTableSQL(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query("SELECT sql FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL ORDER BY name")
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	defer rows.Close()

	var sqls []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("failed to scan sql: %v", err)
		}
		sqls = append(sqls, normalizeSQL(s))
	}
	sort.Strings(sqls)
	return sqls
}

// normalizeSQL collapses whitespace for comparison.
func normalizeSQL(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// expectedTables is the sorted list of tables after all migrations.
var expectedTables = []string{
	"account",
	"audit_log",
	"booking",
	"course",
	"course_registration",
	"customer",
	"lesson",
	"outbox",
	"schema_version",
}

// TestMigrateDB_Fresh verifies all migrations apply cleanly to an empty database.
func TestMigrateDB_Fresh(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed on fresh db: %v", err)
	}

	// Verify version
	version, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != LatestSchemaVersion() {
		t.Errorf("version = %d, want %d", version, LatestSchemaVersion())
	}

	// Verify all expected tables exist
	tables := getTableNames(t, db)
	if len(tables) != len(expectedTables) {
		t.Errorf("got %d tables, want %d\ngot:  %v\nwant: %v", len(tables), len(expectedTables), tables, expectedTables)
	}
	for i, want := range expectedTables {
		if i >= len(tables) {
			t.Errorf("missing table: %s", want)
			continue
		}
		if tables[i] != want {
			t.Errorf("table[%d] = %q, want %q", i, tables[i], want)
		}
	}
}

// TestMigrateDB_Idempotent verifies that running MigrateDB twice produces no errors
// and the version remains the same.
func TestMigrateDB_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("first MigrateDB failed: %v", err)
	}

	version1, _ := SchemaVersion(db)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}

	version2, _ := SchemaVersion(db)
	if version1 != version2 {
		t.Errorf("version changed after idempotent run: %d → %d", version1, version2)
	}
}

// TestMigrateDB_SchemaDrift verifies that the migration chain produces the exact same
// schema as a golden snapshot. This catches cases where someone modifies a migration
// function without updating the expected output.
func TestMigrateDB_SchemaDrift(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}

	// Build golden snapshot from current migrations
	golden := getTableSQL(t, db)

	// Apply migrations to a second fresh database
	db2 := openTestDB(t)
	if err := MigrateDB(db2, ":memory:"); err != nil {
		t.Fatalf("MigrateDB (second) failed: %v", err)
	}

	actual := getTableSQL(t, db2)

	if len(golden) != len(actual) {
		t.Fatalf("schema drift: golden has %d tables, actual has %d", len(golden), len(actual))
	}

	for i := range golden {
		if golden[i] != actual[i] {
			t.Errorf("schema drift at table %d:\ngolden: %s\nactual: %s", i, golden[i], actual[i])
		}
	}
}

// TestMigrateDB_DataSurvival verifies that existing rows survive a re-run.
func TestMigrateDB_DataSurvival(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO course (id, title, start_date, lesson_count, day_of_week, start_time, max_capacity, created_at, updated_at)
		VALUES ('c1', 'Babymassage', '2024-01-08', 6, 1, '10:00', 8, '2024-01-01T00:00:00Z', '2024-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to insert test course: %v", err)
	}
	_, err = db.Exec(`INSERT INTO lesson (id, course_id, lesson_number, title, date_time, duration, max_capacity, created_at)
		VALUES ('l1', 'c1', 1, 'Babymassage - Lesson 1', '2024-01-08T10:00:00Z', 60, 8, '2024-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to insert test lesson: %v", err)
	}

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("second MigrateDB failed: %v", err)
	}

	var title string
	if err := db.QueryRow("SELECT title FROM lesson WHERE id = 'l1'").Scan(&title); err != nil {
		t.Fatalf("lesson data lost after migration: %v", err)
	}
	if title != "Babymassage - Lesson 1" {
		t.Errorf("lesson title = %q", title)
	}
}

// TestMigrateDB_Constraints verifies the counter check and the duplicate booking guard.
func TestMigrateDB_Constraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}
	mustExec := func(q string) {
		t.Helper()
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	mustExec(`INSERT INTO course (id, title, start_date, lesson_count, day_of_week, start_time, max_capacity, created_at, updated_at)
		VALUES ('c1', 'Krabbelgruppe', '2024-01-08', 1, 1, '10:00', 1, 'x', 'x')`)
	mustExec(`INSERT INTO lesson (id, course_id, lesson_number, title, date_time, duration, max_capacity, created_at)
		VALUES ('l1', 'c1', 1, 't', '2024-01-08T10:00:00Z', 60, 1, 'x')`)
	mustExec(`INSERT INTO customer (id, name, email, created_at) VALUES ('u1', 'Anna', 'anna@kurse.example', 'x')`)

	if _, err := db.Exec("UPDATE lesson SET current_bookings = 2 WHERE id = 'l1'"); err == nil {
		t.Error("counter above capacity should violate CHECK")
	}

	mustExec(`INSERT INTO booking (id, lesson_id, customer_id, customer_email, customer_name, created_at)
		VALUES ('b1', 'l1', 'u1', 'anna@kurse.example', 'Anna', 'x')`)
	_, err := db.Exec(`INSERT INTO booking (id, lesson_id, customer_id, customer_email, customer_name, created_at)
		VALUES ('b2', 'l1', 'u1', 'anna@kurse.example', 'Anna', 'x')`)
	if !IsUniqueViolation(err) {
		t.Errorf("second active booking err = %v, want unique violation", err)
	}

	mustExec("UPDATE booking SET booking_status = 'cancelled' WHERE id = 'b1'")
	mustExec(`INSERT INTO booking (id, lesson_id, customer_id, customer_email, customer_name, created_at)
		VALUES ('b3', 'l1', 'u1', 'anna@kurse.example', 'Anna', 'x')`)

	mustExec("DELETE FROM course WHERE id = 'c1'")
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM lesson").Scan(&n); err != nil || n != 0 {
		t.Errorf("lessons after course delete = %d (%v), want cascade to 0", n, err)
	}
}

// TestMigrateDB_VersionProgression verifies that SchemaVersion reports 0 before
// migration and the correct version after.
func TestMigrateDB_VersionProgression(t *testing.T) {
	db := openTestDB(t)

	// Before any migration, version should be 0
	v, err := SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != 0 {
		t.Errorf("initial version = %d, want 0", v)
	}

	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB failed: %v", err)
	}

	v, err = SchemaVersion(db)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != LatestSchemaVersion() {
		t.Errorf("post-migration version = %d, want %d", v, LatestSchemaVersion())
	}
}

// TestMigrateDB_ExistingDB verifies that MigrateDB works on a database that already
// has tables but no schema_version tracking (simulates upgrading a pre-migration database).
func TestMigrateDB_ExistingDB(t *testing.T) {
	db := openTestDB(t)

	// Simulate a pre-migration database: create some tables manually
	_, err := db.Exec(`CREATE TABLE account (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE, password_hash TEXT NOT NULL DEFAULT '', role TEXT NOT NULL, created_at TEXT NOT NULL, failed_logins INTEGER NOT NULL DEFAULT 0, locked_until TEXT)`)
	if err != nil {
		t.Fatalf("failed to create pre-migration table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO account (id, email, role, created_at) VALUES ('a1', 'admin@kurse.example', 'admin', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("failed to insert pre-migration data: %v", err)
	}

	// Run MigrateDB: should detect version 0 and apply migration 1 (with IF NOT EXISTS)
	if err := MigrateDB(db, ":memory:"); err != nil {
		t.Fatalf("MigrateDB on existing db failed: %v", err)
	}

	// Verify pre-existing data survived
	var email string
	if err := db.QueryRow("SELECT email FROM account WHERE id = 'a1'").Scan(&email); err != nil {
		t.Fatalf("pre-migration data lost: %v", err)
	}
	if email != "admin@kurse.example" {
		t.Errorf("email = %q, want %q", email, "admin@kurse.example")
	}

	// Verify version is now at latest
	v, _ := SchemaVersion(db)
	if v != LatestSchemaVersion() {
		t.Errorf("version = %d, want %d", v, LatestSchemaVersion())
	}
}
