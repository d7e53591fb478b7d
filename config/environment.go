package config

import (
	"strings"
)

const (
	// NetworkMainnet is the canonical production network identifier.
	NetworkMainnet = "mainnet-beta"
	// NetworkDevnet is the canonical development network identifier.
	NetworkDevnet = "devnet"
	// NetworkLocalnet identifies a local validator.
	NetworkLocalnet = "localnet"
)

var networkAliases = map[string]string{
	"mainnet": NetworkMainnet,
	"main":    NetworkMainnet,
	"beta":    NetworkMainnet,
	"dev":     NetworkDevnet,
	"local":   NetworkLocalnet,
}

// defaultProgramIDs maps each network to the deployed perp program address.
// A config-level program_id overrides these.
var defaultProgramIDs = map[string]string{
	NetworkMainnet:  "dRiftyHA5bBSrC9KQyfVDtzYvS4t4xoAX6cWiGnrtUxN",
	NetworkDevnet:   "dRiftyHA5bBSrC9KQyfVDtzYvS4t4xoAX6cWiGnrtUxN",
	NetworkLocalnet: "dRiftyHA5bBSrC9KQyfVDtzYvS4t4xoAX6cWiGnrtUxN",
}

// NormalizeNetwork canonicalises a network environment name, tolerating the
// short aliases that show up in deployment configs.
func NormalizeNetwork(env string) string {
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		return NetworkMainnet
	}
	if canonical, ok := networkAliases[env]; ok {
		return canonical
	}
	return env
}

// ProgramIDForNetwork returns the default perp program address for a
// network, falling back to the mainnet deployment for unknown names.
func ProgramIDForNetwork(env string) string {
	if id, ok := defaultProgramIDs[NormalizeNetwork(env)]; ok {
		return id
	}
	return defaultProgramIDs[NetworkMainnet]
}
