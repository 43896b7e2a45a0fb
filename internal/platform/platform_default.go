//go:build !windows

package platform

import "runtime"

func getOSInfo() *osInfo {
	return &osInfo{
		os:       runtime.GOOS,
		shell:    "bash",
		shellArg: "-c",
	}
}
