// Package logger builds the structured loggers used by the binaries.
package logger
