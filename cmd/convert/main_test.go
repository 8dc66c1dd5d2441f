package main

import "testing"

func TestDocumentIDForIsStable(t *testing.T) {
	a := documentIDFor("/data/handbook.pdf")
	if a != documentIDFor("/data/handbook.pdf") {
		t.Fatalf("id changed between calls")
	}
	if a == documentIDFor("/data/other.pdf") {
		t.Fatalf("different files share an id")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := rootCmd()
	for _, name := range []string{"convert", "status", "questions", "answer"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("missing subcommand %s: %v", name, err)
		}
	}
}
