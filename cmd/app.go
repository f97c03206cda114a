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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/mediarunner/config"
	"github.com/cardinalhq/mediarunner/ingestdb"
	"github.com/cardinalhq/mediarunner/internal/admission"
	"github.com/cardinalhq/mediarunner/internal/awsclient"
	"github.com/cardinalhq/mediarunner/internal/azureclient"
	"github.com/cardinalhq/mediarunner/internal/catalog"
	"github.com/cardinalhq/mediarunner/internal/dbopen"
	"github.com/cardinalhq/mediarunner/internal/notify"
	"github.com/cardinalhq/mediarunner/internal/objstore"
	"github.com/cardinalhq/mediarunner/internal/pipeline"
	"github.com/cardinalhq/mediarunner/internal/steps"
)

// app holds the collaborators shared by the worker and operator commands.
type app struct {
	cfg      *config.Config
	aws      *awsclient.Manager
	db       *ingestdb.Store
	store    objstore.Store
	sem      *admission.Semaphore
	catalog  *catalog.CachedClient
	notifier notify.Notifier
	engine   *pipeline.Engine
}

func awsOptions(region, roleARN string) []awsclient.Option {
	var opts []awsclient.Option
	if region != "" {
		opts = append(opts, awsclient.WithRegion(region))
	}
	if roleARN != "" {
		opts = append(opts, awsclient.WithRole(roleARN))
	}
	return opts
}

// openDB connects to the ingestion database. It returns nil without error
// when the database is not configured and nothing requires it.
func openDB(ctx context.Context, cfg *config.Config) (*ingestdb.Store, error) {
	db, err := dbopen.IngestDBStore(ctx)
	if errors.Is(err, dbopen.ErrDatabaseNotConfigured) && cfg.Admission.Backend != admission.BackendPostgres {
		slog.Warn("Ingestion database not configured, execution history is kept in memory")
		return nil, nil
	}
	return db, err
}

func newSemaphore(ctx context.Context, cfg *config.Config, mgr *awsclient.Manager, db *ingestdb.Store) (*admission.Semaphore, error) {
	var store admission.CounterStore
	switch cfg.Admission.Backend {
	case admission.BackendMemory:
		store = admission.NewMemoryStore()
	case admission.BackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("admission backend %s needs the ingestion database", admission.BackendPostgres)
		}
		store = db
	case admission.BackendDynamoDB:
		client, err := mgr.GetDynamoDB(ctx, awsOptions(cfg.AWS.Region, cfg.AWS.RoleARN)...)
		if err != nil {
			return nil, fmt.Errorf("create DynamoDB client: %w", err)
		}
		store = admission.NewDynamoStore(client, cfg.Admission.Table)
	default:
		return nil, fmt.Errorf("unknown admission backend %q", cfg.Admission.Backend)
	}
	return admission.NewSemaphore(store, cfg.Admission.Options()...), nil
}

func newNotifier(ctx context.Context, cfg *config.Config, mgr *awsclient.Manager) (notify.Notifier, error) {
	if cfg.Notify.Backend != config.NotifySES {
		return notify.LogNotifier{}, nil
	}
	client, err := mgr.GetSESv2(ctx, awsOptions(cfg.AWS.Region, cfg.AWS.RoleARN)...)
	if err != nil {
		return nil, fmt.Errorf("create SES client: %w", err)
	}
	resolver := notify.NewResolver(cfg.Notify.Addresses, cfg.Notify.Fallback)
	return notify.NewSESNotifier(client, cfg.Notify.From, resolver), nil
}

func newStore(ctx context.Context, cfg *config.Config, mgr *awsclient.Manager) (objstore.Store, error) {
	if cfg.Storage.Provider == config.StorageAzure {
		client, err := azureclient.NewBlobClient(azureclient.BlobOptions{
			AccountURL:       cfg.Storage.Azure.AccountURL,
			ConnectionString: cfg.Storage.Azure.ConnectionString,
		})
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return objstore.NewAzureStore(client), nil
	}
	s3Client, err := mgr.GetS3(ctx, awsclient.S3Options{
		Endpoint:     cfg.Storage.Endpoint,
		UsePathStyle: cfg.Storage.UsePathStyle,
		InsecureTLS:  cfg.Storage.InsecureTLS,
	}, awsOptions(cfg.AWS.Region, cfg.AWS.RoleARN)...)
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}
	return objstore.NewS3Store(s3Client, objstore.WithMultipartThreshold(cfg.Storage.MultipartThreshold)), nil
}

// newApp builds the engine and everything it depends on.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS manager: %w", err)
	}
	a := &app{cfg: cfg, aws: mgr}

	if a.db, err = openDB(ctx, cfg); err != nil {
		return nil, err
	}

	if a.store, err = newStore(ctx, cfg, mgr); err != nil {
		a.Close()
		return nil, err
	}

	if a.sem, err = newSemaphore(ctx, cfg, mgr, a.db); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Catalog.URL == "" {
		a.Close()
		return nil, errors.New("catalog.url is required")
	}
	a.catalog = catalog.NewCachedClient(catalog.NewHTTPClient(cfg.Catalog.URL, cfg.Catalog.Token, cfg.Catalog.Timeout), cfg.Catalog.CacheTTL)

	if a.notifier, err = newNotifier(ctx, cfg, mgr); err != nil {
		a.Close()
		return nil, err
	}

	tools := steps.FFmpeg{FFmpegPath: cfg.Tools.FFmpegPath, FFprobePath: cfg.Tools.FFprobePath}
	st := steps.New(cfg.Steps, a.store, a.catalog, a.sem, tools)

	deps := pipeline.Deps{Steps: st, Store: a.store, Notifier: a.notifier}
	if a.db != nil {
		deps.History = a.db
	}
	if a.engine, err = pipeline.NewEngine(cfg.Pipeline, deps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	if a.catalog != nil {
		a.catalog.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
}
