// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database_test

import (
	"testing"

	"codeberg.org/oliverandrich/hookpanel/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := database.Open(":memory:")

	require.NoError(t, err)
	require.NotNil(t, db)
	require.NoError(t, db.Close())
}

func TestOpen_MigrationsApplied(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	for _, table := range []string{"users", "password_resets"} {
		var count int64
		err = db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "table %s should exist", table)
	}

	version, err := database.MigrationVersion(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestOpen_FileDatabase(t *testing.T) {
	dbPath := t.TempDir() + "/subdir/test.db"

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	var journalMode string
	require.NoError(t, db.Get(&journalMode, "PRAGMA journal_mode"))
	assert.Equal(t, "wal", journalMode)
}

func TestOpen_WithExistingParams(t *testing.T) {
	db, err := database.Open("file::memory:?mode=memory&_txlock=deferred")

	require.NoError(t, err)
	require.NotNil(t, db)
	_ = db.Close()
}

func TestMigrateDown(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, database.MigrateDown(db.DB))

	var count int64
	require.NoError(t, db.Get(&count, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name='password_resets'"))
	assert.Zero(t, count)
}

func TestConnect_LeavesSchemaAlone(t *testing.T) {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	version, err := database.MigrationVersion(db.DB)
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, database.RunMigrations(db.DB))
	version, err = database.MigrationVersion(db.DB)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}
