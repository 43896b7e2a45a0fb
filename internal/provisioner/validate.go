package provisioner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/containai/cai/internal/containerrt"
	"github.com/google/uuid"
)

// uidMapIdentity is the first line /proc/self/uid_map reports when no
// remapping is active at all; its presence means user-namespace isolation
// is not actually in effect even though the runtime claims to be
// registered (spec §4.5's validation step).
const uidMapIdentity = "0 0 4294967295"

// validationImage is the minimal image the validation step runs under the
// hardened runtime to read back its own /proc/self/uid_map.
const validationImage = "busybox:stable"

// UserNamespaceRemapActive reports whether the process reading path (a
// path inside the validation container's mount namespace, normally
// "/proc/self/uid_map") shows anything other than the identity mapping.
func UserNamespaceRemapActive(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return remapActiveFromUIDMap(string(data)), nil
}

// remapActiveFromUIDMap parses the content of a uid_map file (the first
// line is all that matters) and reports whether it differs from the
// unremapped identity mapping.
func remapActiveFromUIDMap(content string) bool {
	lines := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	if len(lines) == 0 {
		return false
	}
	first := strings.Join(strings.Fields(lines[0]), " ")
	return first != uidMapIdentity
}

// validateUserNamespaceRemap runs a minimal disposable container under the
// hardened endpoint and asserts its /proc/self/uid_map shows an active
// remapping, per spec §4.5's validation step: a runtime can be registered
// and still fail to actually isolate the container's root user.
func validateUserNamespaceRemap(ctx context.Context, adapter containerrt.Adapter, endpoint string) error {
	spec := containerrt.RunSpec{
		Name:       "cai-setup-validate-" + uuid.NewString()[:8],
		Image:      validationImage,
		AutoRemove: true,
		ExtraArgs:  []string{"--runtime=" + hardenedRuntime},
		Entrypoint: []string{"cat"},
		Command:    []string{"/proc/self/uid_map"},
	}
	out := adapter.RunForeground(ctx, endpoint, spec, containerrt.TimeoutContainerStart)
	if !out.IsOK() {
		return fmt.Errorf("validation container failed: %s", describeOutcome(out))
	}
	if out.Value.ExitCode != 0 {
		return fmt.Errorf("validation container exited %d: %s", out.Value.ExitCode, out.Value.Stderr)
	}
	if !remapActiveFromUIDMap(out.Value.Stdout) {
		return fmt.Errorf("user-namespace remapping is not active under the hardened runtime (uid_map shows the identity mapping)")
	}
	return nil
}
