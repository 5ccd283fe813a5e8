package main

import "testing"

func TestRunRequiresDatabaseURL(t *testing.T) {
	if err := run("  ", nil); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}
