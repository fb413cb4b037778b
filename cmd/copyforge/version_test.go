package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommandOutput(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	text := out.String()
	if !strings.Contains(text, Version) {
		t.Errorf("version output %q missing version %q", text, Version)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"run":     false,
		"serve":   false,
		"eval":    false,
		"approve": false,
		"reject":  false,
		"version": false,
	}
	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered", name)
		}
	}
}
