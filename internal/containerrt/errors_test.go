package containerrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   ReasonClass
	}{
		{"daemon down", "Cannot connect to the Docker daemon at unix:///var/run/docker.sock. Is the docker daemon running?", ReasonDaemonNotRunning},
		{"permission", "Got permission denied while trying to connect to the Docker daemon socket", ReasonPermissionDenied},
		{"no such context", "no such context: \"prod\"", ReasonContextMissing},
		{"unrecognized subcommand", "docker: 'sandbox' is not a docker command.", ReasonNotRecognizedSubcmd},
		{"policy disabled", "operation not permitted: disabled by policy", ReasonPolicyDisabled},
		{"no such container", "Error: No such container: abc123", ReasonNoSuchObject},
		{"unmatched text", "something completely unexpected happened", ReasonUnknown},
		{"missing socket", "dial unix /var/run/docker.sock: connect: no such file or directory", ReasonDaemonNotRunning},
		{"unrelated missing path", "error mounting \"/host/missing\" to rootfs: no such file or directory", ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.stderr))
		})
	}
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError(nil))
}
