// Package testutil holds helpers shared by package tests: component setup
// with automatic teardown and synthetic WAV fixtures.
package testutil
