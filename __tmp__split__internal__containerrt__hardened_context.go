package containerrt

import "os"

// DefaultHardenedContextName is the context name Provisioner creates and
// Doctor/Lifecycle look for when no override is configured.
const DefaultHardenedContextName = "cai-hardened"

// HardenedContextEnvVar overrides the hardened context name (spec §6).
const HardenedContextEnvVar = "CONTAINAI_SECURE_ENGINE_CONTEXT"

// HardenedContextName resolves the effective hardened context name: the
// environment override when set, else the fixed default.
func HardenedContextName() string {
	if v := os.Getenv(HardenedContextEnvVar); v != "" {
		return v
	}
	return DefaultHardenedContextName
}


