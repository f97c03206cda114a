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

package awsclient

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/trace"
)

type S3Client struct {
	Client *s3.Client
	Tracer trace.Tracer
}

// S3Options configure S3 clients beyond the shared Option set.
type S3Options struct {
	Endpoint     string
	UsePathStyle bool
	InsecureTLS  bool
}

// WithInsecureTLS turns off cert verification (for self-signed or insecure).
func WithInsecureTLS() Option {
	return func(c *clientConfig) {
		c.applyConfigs = append(c.applyConfigs, func(cfg *aws.Config) {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			cfg.HTTPClient = &http.Client{Transport: tr}
		})
	}
}

// GetS3 builds an S3 client. A non-empty endpoint targets an S3-compatible
// service (MinIO, Ceph); such services usually need path-style addressing.
func (m *Manager) GetS3(_ context.Context, so S3Options, opts ...Option) (*S3Client, error) {
	if so.InsecureTLS {
		opts = append(opts, WithInsecureTLS())
	}
	cfg, _ := m.configFor(opts)

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if so.Endpoint != "" {
			o.BaseEndpoint = aws.String(so.Endpoint)
		}
		o.UsePathStyle = so.UsePathStyle
	})

	return &S3Client{Client: client, Tracer: m.tracer}, nil
}
