package compiler

import (
	"context"
	"strings"
	"testing"
)

func TestExec_EmptyUnitSet(t *testing.T) {
	c := &Exec{Command: "definitely-not-a-real-binary"}
	res, err := c.Compile(context.Background(), nil, Options{ArtifactDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Empty unit set must not invoke the toolchain: %v", err)
	}
	if !res.Success {
		t.Error("Empty unit set is a trivial success")
	}
}

func TestExec_Success(t *testing.T) {
	c := &Exec{Command: "true"}
	res, err := c.Compile(context.Background(), []string{"A.java"}, Options{ArtifactDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !res.Success {
		t.Error("Expected success from exit status 0")
	}
}

func TestExec_ToolchainRejection(t *testing.T) {
	c := &Exec{Command: "false"}
	res, err := c.Compile(context.Background(), []string{"A.java"}, Options{ArtifactDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Non-zero exit is a result, not an error: %v", err)
	}
	if res.Success {
		t.Error("Expected failure from exit status 1")
	}
}

func TestExec_CapturesDiagnostics(t *testing.T) {
	c := &Exec{Command: "sh", Args: []string{"-c", "echo 'A.java:1: error'; exit 1", "--"}}
	res, err := c.Compile(context.Background(), []string{"A.java"}, Options{ArtifactDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if res.Success {
		t.Error("Expected failure")
	}
	if !strings.Contains(res.Diagnostics, "A.java:1: error") {
		t.Errorf("Diagnostics not captured: %q", res.Diagnostics)
	}
}

func TestExec_MissingBinary(t *testing.T) {
	c := &Exec{Command: "definitely-not-a-real-binary"}
	_, err := c.Compile(context.Background(), []string{"A.java"}, Options{ArtifactDir: t.TempDir()})
	if err == nil {
		t.Error("Expected invocation error for missing binary")
	}
}
