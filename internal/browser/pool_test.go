package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 4, cfg.poolSize())
	assert.Equal(t, 30*time.Second, cfg.navigationTimeout())
}

func TestConfigZeroValuesFallBackToDefaults(t *testing.T) {
	var cfg Config
	assert.Equal(t, 4, cfg.poolSize())
	assert.Equal(t, 30*time.Second, cfg.navigationTimeout())
	assert.Equal(t, 10*time.Second, cfg.defaultTimeout())
	assert.Equal(t, 15*time.Second, cfg.acquireTimeout())
	w, h := cfg.viewport()
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestIsTimeoutErrDetectsTimeoutMessages(t *testing.T) {
	assert.True(t, isTimeoutErr(assertError("context deadline exceeded")))
	assert.True(t, isTimeoutErr(assertError("navigation Timeout exceeded")))
	assert.False(t, isTimeoutErr(assertError("element not found")))
}

type testErr string

func (e testErr) Error() string { return string(e) }

func assertError(msg string) error { return testErr(msg) }
