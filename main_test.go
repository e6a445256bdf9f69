package main

import (
	"testing"

	"mcpdeck/cmd"
)

func TestDefaultVersion(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestVersionInjection(t *testing.T) {
	cmd.SetVersion("9.9.9-test")
	defer cmd.SetVersion(version)

	if cmd.GetVersion() != "9.9.9-test" {
		t.Errorf("Expected injected version 9.9.9-test, got %s", cmd.GetVersion())
	}
}
