//go:build windows

package platform

func getOSInfo() *osInfo {
	return &osInfo{
		os:       "windows",
		shell:    "cmd",
		shellArg: "/c",
	}
}
