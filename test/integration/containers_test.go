//go:build integration

package integration

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// startContainer runs image and returns "host:port" for the exposed port.
// The container is terminated when the test ends.
func startContainer(t *testing.T, image, port string, waitFor wait.Strategy) string {
	t.Helper()
	skipIfNoDocker(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{port + "/tcp"},
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	require.NoError(t, err, "start %s", image)

	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port+"/tcp"))
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func startMongo(t *testing.T) string {
	addr := startContainer(t, "mongo:7", "27017",
		wait.ForListeningPort("27017/tcp").WithStartupTimeout(90*time.Second))
	return "mongodb://" + addr
}

func startValkey(t *testing.T) string {
	addr := startContainer(t, "valkey/valkey:8-alpine", "6379",
		wait.ForLog("Ready to accept connections").WithStartupTimeout(60*time.Second))
	return "redis://" + addr
}
