//go:build integration

package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"loanflow/configs"
	"loanflow/internal/rules"
	"loanflow/pkg/platform/sentinel"
	"loanflow/pkg/testutil/containers"
)

type PostgresSourceSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	source *PostgresSource
}

func TestPostgresSourceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSourceSuite))
}

func (s *PostgresSourceSuite) SetupSuite() {
	s.pg = containers.Shared().Postgres(s.T())
	s.source = NewPostgresSource(s.pg.DB, "onboarding")
}

func (s *PostgresSourceSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "rule_documents"))
}

func (s *PostgresSourceSuite) TestLoadWithoutDocument() {
	_, err := s.source.Load(context.Background())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSourceSuite) TestPublishVersionsAndActivates() {
	ctx := context.Background()

	first, err := s.source.Publish(ctx, configs.DefaultRules, "policy-team")
	s.Require().NoError(err)
	s.Equal(1, first.Version)
	s.Equal("2.1.0", first.ConfigVersion)

	next := []byte(strings.Replace(string(configs.DefaultRules), `version: "2.1.0"`, `version: "2.2.0"`, 1))
	second, err := s.source.Publish(ctx, next, "policy-team")
	s.Require().NoError(err)
	s.Equal(2, second.Version)

	engine, err := rules.NewEngine(ctx, s.source)
	s.Require().NoError(err)
	s.Equal("2.2.0", engine.Ruleset().Version)

	s.Require().NoError(s.source.Activate(ctx, 1))
	rs, err := engine.Reload(ctx)
	s.Require().NoError(err)
	s.Equal("2.1.0", rs.Version)

	versions, err := s.source.Versions(ctx)
	s.Require().NoError(err)
	s.Require().Len(versions, 2)
	s.Equal(2, versions[0].Version)
	s.False(versions[0].Active)
	s.True(versions[1].Active)
}

func (s *PostgresSourceSuite) TestPublishRejectsInvalidDocument() {
	_, err := s.source.Publish(context.Background(), []byte("metadata: {}"), "policy-team")
	s.Require().Error(err)
	s.True(rules.IsConfigError(err))

	versions, err := s.source.Versions(context.Background())
	s.Require().NoError(err)
	s.Empty(versions)
}

func (s *PostgresSourceSuite) TestActivateUnknownVersion() {
	err := s.source.Activate(context.Background(), 42)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
