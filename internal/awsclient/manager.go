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
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager hands out AWS service clients that share one base config and
// one cache of assumed-role credentials.
type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	tracer    trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// NewManager initializes AWS config + a single STS client.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr := &Manager{
		baseCfg:     cfg,
		stsClient:   sts.NewFromConfig(cfg),
		sessionName: "mediarunner",
		providers:   make(map[roleKey]aws.CredentialsProvider),
		tracer:      otel.Tracer("github.com/cardinalhq/mediarunner/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	return mgr, nil
}

type roleKey struct {
	Region  string
	RoleARN string
}

// clientConfig is shared by every service getter.
type clientConfig struct {
	RoleARN      string
	Region       string
	applyConfigs []func(*aws.Config)
}

// Option adjusts a single client built by the Manager.
type Option func(*clientConfig)

// WithRole sets the IAM Role ARN to assume (empty = no assume).
func WithRole(roleARN string) Option {
	return func(c *clientConfig) {
		c.RoleARN = roleARN
	}
}

// WithRegion overrides the AWS region for this call.
func WithRegion(region string) Option {
	return func(c *clientConfig) {
		c.Region = region
	}
}

// configFor returns a copy of the base config carrying the credentials
// for the requested region and role.
func (m *Manager) configFor(opts []Option) (aws.Config, clientConfig) {
	cc := clientConfig{Region: m.baseCfg.Region}
	for _, o := range opts {
		o(&cc)
	}

	key := roleKey{Region: cc.Region, RoleARN: cc.RoleARN}
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if !ok {
		m.Lock()
		if provider, ok = m.providers[key]; !ok {
			if cc.RoleARN == "" {
				provider = m.baseCfg.Credentials
			} else {
				p := stscreds.NewAssumeRoleProvider(m.stsClient, cc.RoleARN, func(o *stscreds.AssumeRoleOptions) {
					o.RoleSessionName = m.sessionName
				})
				provider = aws.NewCredentialsCache(p)
			}
			m.providers[key] = provider
		}
		m.Unlock()
	}

	cfg := m.baseCfg.Copy()
	cfg.Region = cc.Region
	cfg.Credentials = provider
	for _, fn := range cc.applyConfigs {
		fn(&cfg)
	}
	return cfg, cc
}
