// Package util holds small parsing and sanitizing helpers shared by the
// server, the pipeline and configuration.
package util
