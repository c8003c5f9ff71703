package cmd

import (
	"bytes"
	"testing"
)

func TestVersionCommandPrintsVersion(t *testing.T) {
	Version = "1.2.3"
	defer func() { Version = "dev" }()

	cmd := newVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "1.2.3\n" {
		t.Fatalf("expected version output %q, got %q", "1.2.3\n", got)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["serve"] || !names["version"] {
		t.Fatalf("expected serve and version subcommands to be registered, got %v", names)
	}
}

func TestVersionCommandAliases(t *testing.T) {
	cmd := newVersionCommand()
	wantAliases := []string{"v", "ver"}
	if len(cmd.Aliases) != len(wantAliases) {
		t.Fatalf("expected aliases %v, got %v", wantAliases, cmd.Aliases)
	}
	for i, a := range wantAliases {
		if cmd.Aliases[i] != a {
			t.Fatalf("expected alias %q at position %d, got %q", a, i, cmd.Aliases[i])
		}
	}
}
