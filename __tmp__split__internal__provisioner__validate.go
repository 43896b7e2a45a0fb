package provisioner

import (
	"fmt"
	"os"
	"strings"
)

// uidMapIdentity is the first line /proc/self/uid_map reports when no
// remapping is active at all; its presence means user-namespace isolation
// is not actually in effect even though the runtime claims to be
// registered (spec §4.5's validation step).
const uidMapIdentity = "0 0 4294967295"

// UserNamespaceRemapActive reports whether the process reading path (a
// path inside the validation container's mount namespace, normally
// "/proc/self/uid_map") shows anything other than the identity mapping.
func UserNamespaceRemapActive(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	lines := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(lines) == 0 {
		return false, nil
	}
	first := strings.Join(strings.Fields(lines[0]), " ")
	return first != uidMapIdentity, nil
}


