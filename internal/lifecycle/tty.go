package lifecycle

import (
	"os"

	"golang.org/x/term"
)

// attachTTY reports whether stdin is a real terminal and, if so, its
// current size. Lifecycle uses this before an interactive attach (`run`
// without --detached, `shell`) to decide whether to request a TTY from the
// container at all and what size to allocate it.
func attachTTY() (width, height int, isTerminal bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return 0, 0, true
	}
	return w, h, true
}
