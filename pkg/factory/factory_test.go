package factory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RestComm/charging-server/pkg/factory"
)

const validConfig = `info:
  version: 1.0.1
  description: OCS test configuration
configuration:
  ocsName: OCS
  diameter:
    protocol: tcp
    hostIPv4: 127.0.0.8
    port: 3868
    originHost: ocs.test.org
    originRealm: test.org
  sbi:
    scheme: http
    registerIPv4: 127.0.0.8
    bindingIPv4: 127.0.0.8
    port: 8000
  ledger: memory
  bypass: false
  validityTime: 3600
  rating:
    enable: true
    mode: local
    defaultRate: 1.5
    tariffs:
      10: 2.0
  cdr:
    enable: true
    dir: /tmp/cdr
  abmfAVPs:
    461: service-context
logger:
  enable: true
  level: info
  reportCaller: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ocscfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadConfig(t *testing.T) {
	cfg, err := factory.ReadConfig(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.NoError(t, factory.CheckConfigVersion(cfg))
	require.Equal(t, "OCS", cfg.Configuration.OcsName)
	require.Equal(t, "tcp", cfg.Configuration.Diameter.Protocol)
	require.Equal(t, 3868, cfg.GetDiameterPort())
	require.Equal(t, "127.0.0.8:8000", cfg.GetSbiBindingAddr())
	require.Equal(t, "http", cfg.GetSbiScheme())
	require.EqualValues(t, 3600, cfg.GetValidityTime())
	require.Equal(t, "charging.cdr", cfg.GetCdrFileName())
	require.Equal(t, "service-context", cfg.Configuration.AbmfAVPs[461])
	require.InDelta(t, 2.0, cfg.Configuration.Rating.Tariffs[10], 0.0001)
}

func TestReadConfigRejectsBadLedger(t *testing.T) {
	badConfig := writeConfig(t, `info:
  version: 1.0.1
configuration:
  ocsName: OCS
  diameter:
    protocol: tcp
    hostIPv4: 127.0.0.8
    originHost: ocs.test.org
    originRealm: test.org
  sbi:
    scheme: http
    registerIPv4: 127.0.0.8
    bindingIPv4: 127.0.0.8
    port: 8000
  ledger: cassandra
logger:
  enable: true
  level: info
`)
	_, err := factory.ReadConfig(badConfig)
	require.Error(t, err)
}

func TestVersionMismatch(t *testing.T) {
	cfg, err := factory.ReadConfig(writeConfig(t,
		"info:\n  version: 0.9.0\n"+validConfig[len("info:\n  version: 1.0.1\n"):]))
	require.NoError(t, err)
	require.Error(t, factory.CheckConfigVersion(cfg))
}

func TestReadUsersFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\"48600100100\": 1000\n\"48600100101\": 50\n"), 0o644))

	users, err := factory.ReadUsersFile(path)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.EqualValues(t, 1000, users["48600100100"])

	_, err = factory.ReadUsersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
