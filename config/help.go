package config

import "fmt"

// PrintHelp prints usage information for the service binary.
func PrintHelp() {
	fmt.Println(`E-Boda realtime coordination service

Usage:
  realtime [flags]

Flags:
  -config-path string   Path to the config yaml file (default "config.yaml")
  -help                 Show this message

Configuration is read from the YAML file and the environment; every
value has a default suitable for local development.`)
}
