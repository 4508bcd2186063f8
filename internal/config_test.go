package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hbomb79/Siphon/internal"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

// unsetenv removes key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func Test_LoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"EXTRACTOR_BACKEND", "EXTRACTOR_SOCKET_TIMEOUT", "STAGING_CLEANUP_DELAY", "CONCURRENCY_WORKERS", "RATE_LIMIT_ENABLED"} {
		unsetenv(t, key)
	}

	config, err := internal.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, internal.BackendYtDlp, config.Extractor.Backend)
	assert.Equal(t, 30*time.Second, config.Extractor.SocketTimeout)
	assert.Equal(t, 5*time.Minute, config.Staging.CleanupDelay)
	assert.Equal(t, "192k", config.Transcoder.AudioBitrate)
	assert.Equal(t, time.Hour, config.Transcoder.ConversionTimeout)
	assert.Equal(t, 30, config.RateLimit.FetchMaxRequests)
	assert.Equal(t, 5, config.RateLimit.DownloadMaxRequests)
	assert.Equal(t, 10, config.RateLimit.DownloadWindowMinutes)
	assert.True(t, config.RateLimit.Enabled)
	assert.Equal(t, 4, config.Concurrency.Workers)
}

func Test_LoadConfig_FromFileWithEnvOverride(t *testing.T) {
	dir := fs.NewDir(t, "config", fs.WithFile("siphon.yaml", `
rest:
  host_address: 127.0.0.1:9000
extractor:
  backend: native
staging:
  dir: /srv/siphon/staging
  cleanup_delay: 90s
concurrency:
  workers: 2
`))
	unsetenv(t, "EXTRACTOR_BACKEND")
	unsetenv(t, "STAGING_DIR")
	unsetenv(t, "STAGING_CLEANUP_DELAY")
	t.Setenv("CONCURRENCY_WORKERS", "6")

	config, err := internal.LoadConfig(dir.Join("siphon.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", config.RestConfig.HostAddr)
	assert.Equal(t, internal.BackendNative, config.Extractor.Backend)
	assert.Equal(t, 90*time.Second, config.Staging.CleanupDelay)
	assert.Equal(t, 6, config.Concurrency.Workers, "environment takes precedence over the file")

	staging, err := config.StagingDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/srv/siphon/staging"), staging)
}

func Test_LoadConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("EXTRACTOR_BACKEND", "carrier-pigeon")

	_, err := internal.LoadConfig("")
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func Test_StagingDir_ExpandsHome(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	config := internal.SiphonConfig{Staging: internal.StagingConfig{Dir: "~/siphon-staging"}}
	dir, err := config.StagingDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "siphon-staging"), dir)
}
