package util

import "github.com/spf13/viper"

// GetCacheEnabled returns whether the metadata response cache is enabled
// Caching can be disabled with the --no-cache flag
func GetCacheEnabled() bool {
	// If no-cache is set, return false (cache disabled)
	// Otherwise return true (cache enabled by default)
	return !viper.GetBool("no-cache")
}
