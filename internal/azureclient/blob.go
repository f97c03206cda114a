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

// Package azureclient builds Azure Blob Storage clients for the object
// store.
package azureclient

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type BlobClient struct {
	Client *azblob.Client
	Tracer trace.Tracer
}

// BlobOptions select how the client authenticates. A connection string
// (shared key, Azurite) takes precedence over the account URL.
type BlobOptions struct {
	// AccountURL is the blob service endpoint, e.g. https://acct.blob.core.windows.net/.
	AccountURL       string
	ConnectionString string
}

// NewBlobClient authenticates with the connection string when one is set
// and with the default Azure credential chain otherwise.
func NewBlobClient(opts BlobOptions) (*BlobClient, error) {
	tracer := otel.Tracer("github.com/cardinalhq/mediarunner/internal/azureclient")

	if opts.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client from connection string: %w", err)
		}
		return &BlobClient{Client: client, Tracer: tracer}, nil
	}

	if opts.AccountURL == "" {
		return nil, errors.New("azure account URL or connection string is required")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("loading Azure credentials: %w", err)
	}
	client, err := azblob.NewClient(opts.AccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &BlobClient{Client: client, Tracer: tracer}, nil
}
