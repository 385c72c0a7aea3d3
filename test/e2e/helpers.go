//go:build e2e

package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/DrSkyle/bridgestore/pkg/config"
)

var (
	buildOnce sync.Once
	binPath   string
	buildErr  error
	buildOut  []byte
)

// GetBinaryPath builds the CLI once per test run and returns its path.
func GetBinaryPath(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		dir, err := os.MkdirTemp("", "bridgestore-e2e")
		if err != nil {
			buildErr = err
			return
		}
		binPath = filepath.Join(dir, "bridgestore")

		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/bridgestore")
		cmd.Dir = "../../"
		cmd.Env = os.Environ()
		buildOut, buildErr = cmd.CombinedOutput()
	})
	if buildErr != nil {
		t.Fatalf("Build failed: %v\n%s", buildErr, buildOut)
	}
	return binPath
}

// cleanEnv returns the process environment without any BRIDGE_* variable.
func cleanEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, config.EnvPrefix+"_") {
			continue
		}
		env = append(env, e)
	}
	return env
}

// s3Env points the CLI at the LocalStack bucket.
func s3Env() []string {
	return append(cleanEnv(),
		config.EnvVar("aws.access_key_id")+"="+awsSettings.AccessKeyID,
		config.EnvVar("aws.secret_access_key")+"="+awsSettings.SecretAccessKey,
		config.EnvVar("aws.region")+"="+awsSettings.Region,
		config.EnvVar("aws.bucket")+"="+awsSettings.Bucket,
		config.EnvVar("aws.endpoint")+"="+awsSettings.Endpoint,
		config.EnvVar("aws.use_path_style")+"="+strconv.FormatBool(awsSettings.UsePathStyle),
	)
}

// runCLI executes the binary and returns stdout, stderr and the exit error.
func runCLI(t *testing.T, env []string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(GetBinaryPath(t), append([]string{"--env-file", ""}, args...)...)
	cmd.Env = env
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
