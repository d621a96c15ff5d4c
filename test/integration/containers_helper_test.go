//go:build integration

package integration

import (
	"os"
	"path/filepath"
	"testing"
)

// requireContainerRuntime skips the test unless a Docker or Podman endpoint
// is reachable for testcontainers.
func requireContainerRuntime(t *testing.T) {
	t.Helper()
	if os.Getenv("DOCKER_HOST") != "" {
		return
	}
	candidates := []string{"/var/run/docker.sock"}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		candidates = append(candidates, filepath.Join(dir, "podman", "podman.sock"), filepath.Join(dir, "docker.sock"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return
		}
	}
	t.Skip("no container runtime available")
}
