// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package dbopen

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{"URL", "HOST", "PORT", "USER", "PASSWORD", "DBNAME", "SSLMODE"} {
		t.Setenv("TESTDB_"+name, "")
	}
	t.Setenv("OTEL_SERVICE_NAME", "")
}

func TestURLTakesPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("TESTDB_URL", "postgresql://example/db")
	t.Setenv("TESTDB_HOST", "ignored")

	got, err := GetDatabaseURLFromEnv("TESTDB")
	require.NoError(t, err)
	assert.Equal(t, "postgresql://example/db", got)
}

func TestURLFromParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("TESTDB_HOST", "db.internal")
	t.Setenv("TESTDB_DBNAME", "ingest")
	t.Setenv("TESTDB_USER", "runner")
	t.Setenv("TESTDB_PASSWORD", "p@ss")
	t.Setenv("TESTDB_SSLMODE", "require")
	t.Setenv("OTEL_SERVICE_NAME", "media runner/worker")

	got, err := GetDatabaseURLFromEnv("TESTDB_")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/ingest", u.Path)
	assert.Equal(t, "runner", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "p@ss", pass)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "media_runner_worker", u.Query().Get("application_name"))
}

func TestMissingParts(t *testing.T) {
	clearEnv(t)
	_, err := GetDatabaseURLFromEnv("TESTDB")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTDB_HOST")
	assert.Contains(t, err.Error(), "TESTDB_DBNAME")
}

func TestApplicationNameIsTruncated(t *testing.T) {
	assert.Len(t, applicationName(strings.Repeat("x", 100)), 63)
	assert.Empty(t, applicationName(""))
}

func TestOptions(t *testing.T) {
	for _, opts := range []Options{SkipMigrationCheck(), WarnOnMigrationMismatch(), WaitForMigrations()} {
		assert.Len(t, opts.MigrationCheckOptions, 1)
	}
}
