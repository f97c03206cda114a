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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/mediarunner/internal/admission"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, admission.BackendPostgres, cfg.Admission.Backend)
	assert.Equal(t, 10, cfg.Admission.Limit)
	assert.Equal(t, 10*time.Hour, cfg.Pipeline.Graph.ExecutionTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.Graph.CompanionWait)
	assert.Equal(t, []string{"txt", "md5"}, cfg.Steps.AllowedEmptyExtensions)
	assert.Equal(t, NotifyLog, cfg.Notify.Backend)
	assert.Equal(t, StorageS3, cfg.Storage.Provider)
	assert.Equal(t, 8090, cfg.Health.Port)
	assert.Equal(t, 6*time.Hour, cfg.Scratch.StaleAfter)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDIARUNNER_QUEUE_URL", "https://sqs.us-east-2.amazonaws.com/1/ingest")
	t.Setenv("MEDIARUNNER_ADMISSION_BACKEND", "dynamodb")
	t.Setenv("MEDIARUNNER_ADMISSION_TABLE", "media-admission")
	t.Setenv("MEDIARUNNER_ADMISSION_LIMIT", "4")
	t.Setenv("MEDIARUNNER_PIPELINE_GRAPH_COMPANION_WAIT", "30s")
	t.Setenv("MEDIARUNNER_STEPS_CATALOG_BUCKET", "catalog")
	t.Setenv("MEDIARUNNER_STEPS_PRIMARY_EXTENSIONS", "mkv,mxf")
	t.Setenv("MEDIARUNNER_STORAGE_PROVIDER", "azure")
	t.Setenv("MEDIARUNNER_STORAGE_AZURE_ACCOUNT_URL", "https://archive.blob.core.windows.net/")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.us-east-2.amazonaws.com/1/ingest", cfg.Queue.URL)
	assert.Equal(t, admission.BackendDynamoDB, cfg.Admission.Backend)
	assert.Equal(t, "media-admission", cfg.Admission.Table)
	assert.Equal(t, 4, cfg.Admission.Limit)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Graph.CompanionWait)
	assert.Equal(t, "catalog", cfg.Steps.CatalogBucket)
	assert.Equal(t, []string{"mkv", "mxf"}, cfg.Steps.PrimaryExtensions)
	assert.Equal(t, StorageAzure, cfg.Storage.Provider)
	assert.Equal(t, "https://archive.blob.core.windows.net/", cfg.Storage.Azure.AccountURL)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
notify:
  backend: ses
  from: ingest@example.org
  addresses:
    archivist: archivist@example.org
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NotifySES, cfg.Notify.Backend)
	assert.Equal(t, "archivist@example.org", cfg.Notify.Addresses["archivist"])
}

func TestLoadExplicitPath(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admission:\n  limit: 3\nscratch:\n  min_free_bytes: 1024\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Admission.Limit)
	assert.Equal(t, uint64(1024), cfg.Scratch.MinFreeBytes)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Admission.Backend = admission.BackendDynamoDB
	assert.Error(t, cfg.Validate(), "dynamodb needs a table")

	cfg = Default()
	cfg.Notify.Backend = NotifySES
	assert.Error(t, cfg.Validate(), "ses needs a from address")

	cfg = Default()
	cfg.Notify.Backend = "pigeon"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Provider = StorageAzure
	assert.Error(t, cfg.Validate(), "azure needs an account")
	cfg.Storage.Azure.ConnectionString = "UseDevelopmentStorage=true"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Provider = "gcs"
	assert.Error(t, cfg.Validate())
}
