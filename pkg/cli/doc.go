// Package cli implements the expectd command line: serve, validate and
// version, built on cobra.
package cli
