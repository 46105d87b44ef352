// Package config parses poetry server addresses and holds the client and
// server configuration, including the YAML multi-listener server file.
package config
