/*
 * OCS Configuration Factory
 */

package factory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/RestComm/charging-server/internal/logger"
)

// TODO: Support configuration update from REST api
func InitConfigFactory(f string, cfg *Config) error {
	if f == "" {
		f = OcsDefaultConfigPath
	}

	if content, err := os.ReadFile(f); err != nil {
		return fmt.Errorf("[Factory] %+v", err)
	} else {
		logger.CfgLog.Infof("Read config from [%s]", f)
		if yamlErr := yaml.Unmarshal(content, cfg); yamlErr != nil {
			return fmt.Errorf("[Factory] %+v", yamlErr)
		}
	}

	return nil
}

const OcsDefaultConfigPath = "./config/ocscfg.yaml"

func ReadConfig(cfgPath string) (*Config, error) {
	cfg := &Config{}
	if err := InitConfigFactory(cfgPath, cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Validate(); err != nil {
		validErrs := err.Error()
		logger.CfgLog.Errorf("invalid config: %s", validErrs)
		return nil, fmt.Errorf("config validation failed")
	}

	return cfg, nil
}

func CheckConfigVersion(cfg *Config) error {
	currentVersion := cfg.GetVersion()

	if currentVersion != OcsExpectedConfigVersion {
		return fmt.Errorf("config version is [%s], but expected is [%s]",
			currentVersion, OcsExpectedConfigVersion)
	}

	logger.CfgLog.Infof("config version [%s]", currentVersion)

	return nil
}

// ReadUsersFile loads an initial account balance table, a flat yaml map
// of MSISDN to balance in units.
func ReadUsersFile(f string) (map[string]int64, error) {
	content, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("[Factory] %+v", err)
	}

	users := make(map[string]int64)
	if yamlErr := yaml.Unmarshal(content, &users); yamlErr != nil {
		return nil, fmt.Errorf("[Factory] %+v", yamlErr)
	}

	return users, nil
}
