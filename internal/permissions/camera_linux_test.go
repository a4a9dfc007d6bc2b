//go:build linux

package permissions

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasCameraAccessMissingNode(t *testing.T) {
	if err := HasCameraAccess(filepath.Join(t.TempDir(), "video9")); err != nil {
		t.Errorf("missing node = %v, want nil", err)
	}
}

func TestHasCameraAccessReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := HasCameraAccess(path); err != nil {
		t.Errorf("HasCameraAccess = %v, want nil", err)
	}
}

func TestHasCameraAccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file modes")
	}
	path := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(path, nil, 0o000); err != nil {
		t.Fatal(err)
	}

	err := HasCameraAccess(path)
	if !errors.Is(err, ErrCameraAccess) || !errors.Is(err, os.ErrPermission) {
		t.Fatalf("HasCameraAccess = %v, want ErrCameraAccess", err)
	}
	if !strings.Contains(err.Error(), "video group") {
		t.Errorf("message lacks a fix: %q", err.Error())
	}
}
