// Package main is the entry point of the querymancer CLI.
package main

import (
	"github.com/huangsam/querymancer/cmd"
	"github.com/huangsam/querymancer/internal/contract"
)

func main() {
	err := cmd.Execute()
	if stopErr := cmd.StopProfiling(); stopErr != nil {
		contract.LogWarn("Failed to stop profiling", stopErr)
	}
	if err != nil {
		contract.LogFatal("Command failed", err)
	}
}
