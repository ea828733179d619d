// Package config parses and validates the master's command-line
// surface using cobra/pflag.
package config
