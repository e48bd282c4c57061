package base

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// EnvPrefix prefixes every environment variable read by bbbpool.
const EnvPrefix = "BBBPOOL"

// DefaultScalewayZone is used when the scaleway block is omitted.
const DefaultScalewayZone = "fr-par-1"

// LoadEnv overrides the secrets of config with the environment, for example
// BBBPOOL_SCW_SECRET_KEY. Variables found in envFile are added to the
// environment first without overriding the ones already set.
func LoadEnv(config *structs.Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("error loading %s: %v", envFile, err)
		}
	}

	// Scaleway credentials may come from the environment alone.
	if strings.EqualFold(config.Hoster, "scaleway") && config.Scaleway == nil {
		config.Scaleway = &structs.Scaleway{Zone: DefaultScalewayZone}
	}

	// Only the blocks present are processed so absent ones stay disabled.
	var specs []interface{}
	if config.Scaleway != nil {
		specs = append(specs, config.Scaleway)
	}
	if config.State != nil {
		specs = append(specs, config.State)
	}
	if config.Notification != nil {
		specs = append(specs, config.Notification)
		if config.Notification.Email != nil {
			specs = append(specs, config.Notification.Email)
		}
	}

	for _, spec := range specs {
		if err := envconfig.Process(EnvPrefix, spec); err != nil {
			return err
		}
	}

	return nil
}
