// See config.go for the full precedence chain: environment variable, then
// YAML file (BUTTERVOLUME_CONFIG or /etc/buttervolume/config.yml), then
// hardcoded default.
package config
