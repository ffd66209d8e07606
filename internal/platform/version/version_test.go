package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, Commit, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "v1.2.3", Commit: "abc123", BuildTime: "2026-01-01T00:00:00Z", GoVersion: "go1.25.0"}
	assert.Equal(t, "wspush v1.2.3 (abc123, built 2026-01-01T00:00:00Z, go1.25.0)", info.String())
}
