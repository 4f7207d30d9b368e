//go:build mage

// Tools for building and maintaining voidnet.
package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Builds the voidnet binary into ./bin.
func Build() error {
	mg.Deps(Vet)
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "build", "-o", "bin/voidnet", "./cmd/voidnet")
	return err
}

// Runs go vet across the module.
func Vet() error {
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "vet", "./...")
	return err
}

// Runs all tests.
// Tests are run with -race.
func Test() error {
	_, err := sh.Exec(nil, os.Stdout, os.Stderr, "go", "test", "./...", "-race", "-count=1")
	return err
}
