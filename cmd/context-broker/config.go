package main

import (
	"context"
	"flag"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
)

type FlagType int
type FlagMap map[FlagType]string

const (
	listenAddress FlagType = iota
	servicePort

	configPath
	opaPath

	logFormat
)

func DefaultFlags() FlagMap {
	return FlagMap{
		listenAddress: "",
		servicePort:   "8080",

		configPath: "/opt/diwise/config/default.yaml",
		opaPath:    "/opt/diwise/config/authz.rego",

		logFormat: "json",
	}
}

// parseExternalConfig lets environment variables override the defaults, and
// command line flags override both
func parseExternalConfig(ctx context.Context, flags FlagMap) FlagMap {
	flags[servicePort] = env.GetVariableOrDefault(ctx, "SERVICE_PORT", flags[servicePort])
	flags[configPath] = env.GetVariableOrDefault(ctx, "BROKER_CONFIG_PATH", flags[configPath])
	flags[opaPath] = env.GetVariableOrDefault(ctx, "POLICIES_PATH", flags[opaPath])

	apply := func(f FlagType) func(string) error {
		return func(value string) error {
			flags[f] = value
			return nil
		}
	}

	flag.Func("config", "path to the broker configuration file", apply(configPath))
	flag.Func("policies", "path to the authorization policies (rego)", apply(opaPath))
	flag.Func("port", "port to listen for connections on", apply(servicePort))
	flag.Func("logformat", "log format, json or text", apply(logFormat))
	flag.Parse()

	return flags
}
