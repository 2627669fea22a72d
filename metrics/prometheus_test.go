package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	IdleJobs("small", 12)
	ExistingGlideins("glide_jdoe", "PD", 2)
	TargetGlideins("glide_jdoe", 3)
	SubmittedGlideins("glide_jdoe")

	path := filepath.Join(t.TempDir(), "glidein.prom")
	require.NoError(t, WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `glidein_condor_idle_jobs{class="small"} 12`)
	assert.Contains(t, s, `glidein_glideins_existing{name="glide_jdoe",state="PD"} 2`)
	assert.Contains(t, s, `glidein_glideins_target{name="glide_jdoe"} 3`)
	assert.Contains(t, s, `glidein_glideins_submitted{name="glide_jdoe"} 1`)
	assert.Contains(t, s, "glidein_last_run_timestamp_seconds")
}
