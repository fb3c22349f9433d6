package app

import (
	"context"
	"testing"
)

func TestRunRejectsUnknownCommands(t *testing.T) {
	if err := Run(context.Background(), nil); err == nil {
		t.Fatal("expected missing command to fail")
	}
	if err := Run(context.Background(), []string{"launch"}); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}
