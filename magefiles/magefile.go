//go:build mage

// Package main provides build targets for the habitgrid project using Mage.
//
// Usage:
//
//	mage build          Compile habitgrid binary to bin/
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Run all tests and write coverage.out
//	mage lint           Run golangci-lint
//	mage smoke          Build, then init and show against a temp journal
//	mage clean          Remove build artifacts
//	mage install        Install habitgrid to GOPATH/bin
//	mage stats          Print Go LOC per package
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "habitgrid"
	binaryDir  = "bin"
	cmdDir     = "./cmd/habitgrid"
)

// Build compiles the habitgrid binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.Remove("coverage.out"); err != nil && !os.IsNotExist(err) {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Smoke builds the binary and runs init, add, check, and show against a
// throwaway config and journal directory.
func Smoke() error {
	mg.Deps(Build)
	dir, err := os.MkdirTemp("", "habitgrid-smoke-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	bin := filepath.Join(binaryDir, binaryName)
	global := []string{
		"--config-dir", filepath.Join(dir, "config"),
		"--data-dir", filepath.Join(dir, "data"),
	}
	steps := [][]string{
		{"init"},
		{"add", "Smoke test"},
		{"check", "Smoke test"},
		{"show", "--window", "7"},
	}
	for _, step := range steps {
		if err := sh.RunV(bin, append(global, step...)...); err != nil {
			return fmt.Errorf("habitgrid %v: %w", step, err)
		}
	}
	return nil
}
