package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The embedded app identity must make a copied binary fully functional away
// from the checkout, with no .fulmen/app.yaml to discover.
func TestStandaloneBinaryRunsOutsideRepo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}

	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	require.NoError(t, err, "go env GOMOD")
	goModPath := strings.TrimSpace(string(goModPathBytes))
	require.NotEmpty(t, goModPath, "go env GOMOD returned empty")
	repoRoot := filepath.Dir(goModPath)

	binaryPath := filepath.Join(t.TempDir(), "waypost")
	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/waypost")
	build.Dir = repoRoot
	build.Env = os.Environ()
	out, err := build.CombinedOutput()
	require.NoError(t, err, "go build: %s", string(out))

	// Copy byte-for-byte rather than shelling out to cp.
	outside := t.TempDir()
	copiedBinary := filepath.Join(outside, "waypost")
	data, err := os.ReadFile(binaryPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(copiedBinary, data, 0o755))

	for _, args := range [][]string{{"version"}, {"--help"}, {"rate-limit", "policy"}} {
		cmd := exec.Command(copiedBinary, args...)
		cmd.Dir = outside
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "%v failed: %s", args, string(out))
	}
}
