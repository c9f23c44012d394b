//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
// If not set, running mage will list available targets
var Default = Build

func Build() error {
	mg.Deps(BuildPdf)
	mg.Deps(BuildEvtConfig)
	mg.Deps(BuildBenchStats)
	fmt.Println("Compilation finished")
	return nil
}

func BuildPdf() error {
	return buildBinary("buildpdf")
}

func BuildEvtConfig() error {
	return buildBinary("evtconfig")
}

func BuildBenchStats() error {
	return buildBinary("benchstats")
}

// The pdf builder links against the system HDF5 through cgo, CFLAGS and
// LDFLAGS are passed through for non-standard install locations.
func buildBinary(name string) error {
	fmt.Printf("Building %s executable...\n", name)
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", "build", "-o", "./bin/"+name, "./"+name)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("CGO_ENABLED=1"),
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
