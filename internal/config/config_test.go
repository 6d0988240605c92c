package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csg33k/remessa-generator/internal/domain"
)

const sampleYAML = `
db_path: /var/lib/remessa/remessa.db
output_dir: /srv/remessas
unresolved_clients: fail
log:
  level: debug
company:
  convenio: "00330043002501218126"
  name: CRECHE BERCARIO NANA
  bank_code: "033"
  bank_name: BANCO SANTANDER
  system_id: G4DB160609
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remessa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "remessa.db", cfg.DBPath)
	assert.Equal(t, "remessas", cfg.OutputDir)
	assert.Equal(t, "data", cfg.ArchiveDir)
	assert.Equal(t, "", cfg.LayoutFile)
	assert.Equal(t, domain.SkipUnresolved, cfg.Policy())
	assert.Equal(t, "04", cfg.NSASuffix)
	assert.Equal(t, log.InfoLevel, cfg.Level())

	assert.Error(t, cfg.ValidateCompany(), "company has no defaults")
}

func TestLoad_File(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/remessa/remessa.db", cfg.DBPath)
	assert.Equal(t, "/srv/remessas", cfg.OutputDir)
	assert.Equal(t, domain.FailUnresolved, cfg.Policy())
	assert.Equal(t, log.DebugLevel, cfg.Level())
	assert.Equal(t, "033", cfg.Company.BankCode)
	require.NoError(t, cfg.ValidateCompany())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REMESSA_DB_PATH", "/tmp/other.db")
	t.Setenv("REMESSA_COMPANY_NAME", "OUTRA EMPRESA")
	t.Setenv("REMESSA_LOG_LEVEL", "WARN")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, "OUTRA EMPRESA", cfg.Company.Name)
	assert.Equal(t, log.WarnLevel, cfg.Level())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REMESSA_OUTPUT_DIR=/from/dotenv\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("REMESSA_OUTPUT_DIR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.OutputDir)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(writeConfig(t, "unresolved_clients: maybe\n"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeConfig(t, "nsa_suffix: \"4\"\n"))
	assert.ErrorContains(t, err, "invalid config")

	_, err = Load(writeConfig(t, "nsa_suffix: AB\n"))
	assert.ErrorContains(t, err, "NSASuffix", "the suffix must be digits")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config file must exist")
}

func TestValidateCompany(t *testing.T) {
	cfg := &Config{Company: domain.Company{
		Convenio: "00330043002501218126",
		Name:     "CRECHE",
		BankCode: "33",
		BankName: "BANCO",
	}}
	assert.Error(t, cfg.ValidateCompany(), "bank code must be 3 digits")
	cfg.Company.BankCode = "033"
	assert.NoError(t, cfg.ValidateCompany())
}
