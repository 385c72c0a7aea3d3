//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DrSkyle/bridgestore/pkg/config"
	"github.com/DrSkyle/bridgestore/pkg/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

var (
	awsSettings config.AWS
	docker      *client.Client
	containerID string
)

const (
	localstackImage = "localstack/localstack:3.0.2"
	localstackPort  = nat.Port("4566/tcp")
	testBucket      = "bridge-e2e"
)

// dockerHost prefers E2E_DOCKER_SOCKET, then the standard socket, then OrbStack's.
func dockerHost() string {
	if env := os.Getenv("E2E_DOCKER_SOCKET"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	for _, sock := range []string{"/var/run/docker.sock", filepath.Join(home, ".orbstack/run/docker.sock")} {
		if _, err := os.Stat(sock); err == nil {
			return "unix://" + sock
		}
	}
	return client.DefaultDockerHost
}

func TestMain(m *testing.M) {
	ctx := context.Background()

	endpoint, err := startLocalStack(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
		stopLocalStack()
		os.Exit(1)
	}

	awsSettings = config.AWS{
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Region:          "us-east-1",
		Bucket:          testBucket,
		Endpoint:        endpoint,
		UsePathStyle:    true,
	}
	if err := createBucket(ctx, awsSettings); err != nil {
		fmt.Fprintf(os.Stderr, "e2e: %v\n", err)
		stopLocalStack()
		os.Exit(1)
	}

	code := m.Run()
	stopLocalStack()
	os.Exit(code)
}

// startLocalStack runs a throwaway LocalStack container and returns its edge endpoint.
func startLocalStack(ctx context.Context) (string, error) {
	cli, err := client.NewClientWithOpts(client.WithHost(dockerHost()), client.WithAPIVersionNegotiation())
	if err != nil {
		return "", fmt.Errorf("docker client: %w", err)
	}
	docker = cli

	pull, err := cli.ImagePull(ctx, localstackImage, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("pull %s: %w", localstackImage, err)
	}
	_, _ = io.Copy(io.Discard, pull)
	pull.Close()

	created, err := cli.ContainerCreate(ctx,
		&container.Config{
			Image:        localstackImage,
			ExposedPorts: nat.PortSet{localstackPort: struct{}{}},
			Env:          []string{"SERVICES=s3,dynamodb,sts"},
		},
		&container.HostConfig{
			AutoRemove:   true,
			PortBindings: nat.PortMap{localstackPort: {{HostIP: "127.0.0.1", HostPort: "0"}}},
		}, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	containerID = created.ID

	if err := cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	info, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("inspect container: %w", err)
	}
	ports := info.NetworkSettings.Ports[localstackPort]
	if len(ports) == 0 {
		return "", fmt.Errorf("no host port bound for %s", localstackPort)
	}

	endpoint := "http://127.0.0.1:" + ports[0].HostPort
	return endpoint, waitHealthy(ctx, endpoint, 30*time.Second)
}

func stopLocalStack() {
	if docker == nil || containerID == "" {
		return
	}
	_ = docker.ContainerRemove(context.Background(), containerID, container.RemoveOptions{Force: true})
}

// waitHealthy polls the LocalStack health endpoint until it answers 200.
func waitHealthy(ctx context.Context, endpoint string, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	httpClient := &http.Client{Timeout: time.Second}
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/_localstack/health", nil)
		if err != nil {
			return err
		}
		if resp, err := httpClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("localstack at %s not healthy: %w", endpoint, ctx.Err())
		case <-tick.C:
		}
	}
}

func createBucket(ctx context.Context, cfg config.AWS) error {
	s3Client := s3.NewFromConfig(storage.NewAWSConfig(cfg, false, nil), func(o *s3.Options) {
		o.UsePathStyle = true
	})
	if _, err := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}
	return nil
}
