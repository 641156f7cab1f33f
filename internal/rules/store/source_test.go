package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loanflow/configs"
	"loanflow/internal/rules"
)

func TestFileSource_ReloadSeesEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, configs.DefaultRules, 0o600))

	engine, err := rules.NewEngine(context.Background(), NewFileSource(path))
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", engine.Ruleset().Version)

	edited := []byte("version: \"2.2.0\"\n" + string(configs.DefaultRules[len("version: \"2.1.0\"\n"):]))
	require.NoError(t, os.WriteFile(path, edited, 0o600))

	rs, err := engine.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.2.0", rs.Version)
}

func TestFileSource_MissingFile(t *testing.T) {
	_, err := rules.NewEngine(context.Background(), NewFileSource(filepath.Join(t.TempDir(), "absent.yaml")))
	require.Error(t, err)
	assert.True(t, rules.IsConfigError(err))
}

func TestStaticSource_DefaultDocumentCompiles(t *testing.T) {
	engine, err := rules.NewEngine(context.Background(), StaticSource(configs.DefaultRules))
	require.NoError(t, err)

	rs := engine.Ruleset()
	assert.Empty(t, rs.Warnings)
	assert.Equal(t, []string{
		"preliminary_rules", "kyc_rules", "cibil_rules",
		"employment_rules", "eligibility_rules", "risk_assessment_rules",
	}, rs.Names)

	cibil, ok := rs.Category("cibil_rules")
	require.True(t, ok)
	assert.Equal(t, 55.0, cibil.MaxPossibleScore(), "excellent band 40 + payment 10 + history 5")
}
