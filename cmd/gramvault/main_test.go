package main

import "testing"

func TestRootCommandSubcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{"run": false, "test": false, "smoke": false, "clean": false}
	for _, sub := range root.Commands() {
		name := sub.Name()
		if _, ok := want[name]; ok {
			want[name] = true
			continue
		}
		// Cobra injects its own help/completion commands; anything else
		// would be a workflow this repository does not support.
		switch name {
		case "help", "completion":
		default:
			t.Fatalf("unexpected subcommand %q", name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestGoTestArgs(t *testing.T) {
	got := goTestArgs(nil, true, false)
	want := []string{"test", "-race", "./..."}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}

	got = goTestArgs([]string{"./internal/store"}, false, true)
	want = []string{"test", "-cover", "./internal/store"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("args = %v, want %v", got, want)
		}
	}
}
