// Package config reads the server configuration from the environment.
//
// Everything has a default so a single replica comes up with no
// configuration at all; the stateful-deployment values (pod name, address
// template, secret path) are injected by the deployment manifests.
package config

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Environment variable names.
const (
	envAddrTemplate = "CLACHELESS_ADDR_TEMPLATE"
	envPodName      = "POD_NAME"
	envTTL          = "CLACHELESS_TTL"
	envHTTPPort     = "CLACHELESS_HTTP_PORT"
	envSecretPath   = "CLACHELESS_SECRET_PATH"
	envLogLevel     = "LOG_LEVEL"
	envLogStyle     = "LOG_STYLE"
)

// Config is the resolved startup configuration. Immutable after Load.
type Config struct {
	// AddressTemplate is fqdn:port with the literal ORDINAL substring,
	// substituted per peer slot.
	AddressTemplate string
	// Ordinal is the local replica slot, parsed from the pod name suffix.
	Ordinal uint32
	// TTLMicros is how long a cached item is kept.
	TTLMicros uint64
	// HTTPPort is the client-facing HTTP port.
	HTTPPort int
	// SecretPath holds the base64-encoded peer auth secret.
	SecretPath string
}

// Load resolves the configuration from the environment.
func Load() Config {
	v := viper.New()
	v.SetDefault(envAddrTemplate, "statefulsetname-ORDINAL.headlessservicename.namespace.svc:9090")
	v.SetDefault(envPodName, "clacheless-0")
	v.SetDefault(envTTL, 3600)
	v.SetDefault(envHTTPPort, 8080)
	v.SetDefault(envSecretPath, "/secrets/dc/key")
	v.AutomaticEnv()

	ttlSeconds := v.GetUint64(envTTL)
	if ttlSeconds == 0 {
		ttlSeconds = 3600
	}
	return Config{
		AddressTemplate: v.GetString(envAddrTemplate),
		Ordinal:         OrdinalFromPodName(v.GetString(envPodName)),
		TTLMicros:       ttlSeconds * 1_000_000,
		HTTPPort:        v.GetInt(envHTTPPort),
		SecretPath:      v.GetString(envSecretPath),
	}
}

// OrdinalFromPodName extracts the replica slot from a pod name with format
// prefix-{ordinal}, defaulting to 0 when no ordinal can be parsed.
func OrdinalFromPodName(podName string) uint32 {
	idx := strings.LastIndex(podName, "-")
	if idx < 0 {
		return 0
	}
	ordinalString := podName[idx+1:]
	ordinal, err := strconv.ParseUint(ordinalString, 10, 32)
	if err != nil {
		logrus.Debugf("Failed to parse ordinal '%s': %v", ordinalString, err)
		return 0
	}
	return uint32(ordinal)
}

// InitLogging configures logrus from LOG_LEVEL and LOG_STYLE.
func InitLogging() {
	v := viper.New()
	v.SetDefault(envLogLevel, "info")
	v.SetDefault(envLogStyle, "text")
	v.AutomaticEnv()

	level, err := logrus.ParseLevel(v.GetString(envLogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(v.GetString(envLogStyle), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
