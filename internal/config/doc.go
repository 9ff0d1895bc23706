// Package config holds the bankrotscan run configuration.
//
// Values are layered: built-in defaults, then the YAML file (.bankrotscan
// in the working or home directory, or --config), then BANKROTSCAN_*
// environment variables (optionally read from a dotenv file), and finally
// command-line flags set explicitly by the user.
package config
