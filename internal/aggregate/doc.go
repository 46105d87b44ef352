// Package aggregate collects the terminal outcome of every fetch attempt
// and signals completion once, when all registered attempts have reported.
package aggregate
