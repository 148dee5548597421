package main

import (
	"github.com/franz/deadstream/internal/score"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (DSC_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// configWeights reads the scoring weights from config. Keys under
// "weights" override the defaults one by one, so a config file can
// adjust a single component.
func configWeights() score.Weights {
	weights := score.DefaultWeights()
	for key := range weights {
		configKey := "weights." + key
		if viper.IsSet(configKey) {
			weights[key] = viper.GetFloat64(configKey)
		}
	}
	return weights
}
