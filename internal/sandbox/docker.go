package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beaverai/beaver/internal/common/config"
	"github.com/beaverai/beaver/internal/common/logger"
)

const dockerWorkdir = "/workspace"

// DockerProvider runs sandboxes as local containers. Each sandbox is one
// long-lived container with commands executed through the exec API.
type DockerProvider struct {
	cli    *client.Client
	image  string
	logger *logger.Logger
}

// NewDockerProvider connects to the Docker daemon and verifies it is
// reachable.
func NewDockerProvider(ctx context.Context, cfg config.SandboxConfig, log *logger.Logger) (*DockerProvider, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	log.Info("Docker sandbox provider ready",
		zap.String("host", cfg.DockerHost),
		zap.String("image", cfg.DockerImage),
	)

	return &DockerProvider{
		cli:    cli,
		image:  cfg.DockerImage,
		logger: log.WithFields(zap.String("component", "docker_provider")),
	}, nil
}

func (p *DockerProvider) Name() string { return "docker" }

// Close closes the underlying Docker client.
func (p *DockerProvider) Close() error {
	return p.cli.Close()
}

// Create pulls the sandbox image if needed and starts an idle container
// for the new environment.
func (p *DockerProvider) Create(ctx context.Context) (*Handle, error) {
	if err := p.ensureImage(ctx); err != nil {
		return nil, &Error{Provider: "docker", Op: "create", Err: err}
	}

	name := "beaver-sandbox-" + uuid.New().String()[:8]
	containerCfg := &container.Config{
		Image:      p.image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: dockerWorkdir,
		Labels:     map[string]string{"beaver.sandbox": "true"},
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{},
	}

	resp, err := p.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return nil, &Error{Provider: "docker", Op: "create", Err: err}
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = p.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, &Error{Provider: "docker", Op: "create", Err: err}
	}

	// Commands run relative to the workdir, so it has to exist.
	if _, err := p.exec(ctx, resp.ID, "mkdir -p "+dockerWorkdir); err != nil {
		p.logger.Warn("Failed to prepare workdir", zap.String("container_id", resp.ID), zap.Error(err))
	}

	p.logger.Info("Sandbox container started",
		zap.String("container_id", resp.ID),
		zap.String("name", name),
	)

	return &Handle{
		ID:         name,
		ProviderID: resp.ID,
		Status:     StatusRunning,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RunCommand executes a shell command through the exec API and captures
// both output streams.
func (p *DockerProvider) RunCommand(ctx context.Context, handle *Handle, command string) (*CommandResult, error) {
	result, err := p.exec(ctx, handle.ProviderID, command)
	if err != nil {
		return nil, &Error{Provider: "docker", Op: "run_command", Err: err}
	}
	return result, nil
}

func (p *DockerProvider) exec(ctx context.Context, containerID, command string) (*CommandResult, error) {
	execCfg := container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		WorkingDir:   dockerWorkdir,
		AttachStdout: true,
		AttachStderr: true,
	}

	created, err := p.cli.ContainerExecCreate(ctx, containerID, execCfg)
	if err != nil {
		return nil, fmt.Errorf("exec create: %w", err)
	}

	attach, err := p.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	// When Tty is false the output arrives multiplexed with 8-byte
	// stream headers.
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil {
		return nil, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := p.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}

	return &CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
		Success:  inspect.ExitCode == 0,
	}, nil
}

// WriteFile copies content into the container as a tar archive.
func (p *DockerProvider) WriteFile(ctx context.Context, handle *Handle, filePath string, content []byte) error {
	target := filePath
	if !strings.HasPrefix(target, "/") {
		target = path.Join(dockerWorkdir, target)
	}

	if dir := path.Dir(target); dir != "/" {
		if _, err := p.exec(ctx, handle.ProviderID, "mkdir -p "+dir); err != nil {
			return &Error{Provider: "docker", Op: "write_file", Err: err}
		}
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name:    path.Base(target),
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return &Error{Provider: "docker", Op: "write_file", Err: err}
	}
	if _, err := tw.Write(content); err != nil {
		return &Error{Provider: "docker", Op: "write_file", Err: err}
	}
	if err := tw.Close(); err != nil {
		return &Error{Provider: "docker", Op: "write_file", Err: err}
	}

	if err := p.cli.CopyToContainer(ctx, handle.ProviderID, path.Dir(target), &buf, container.CopyToContainerOptions{}); err != nil {
		return &Error{Provider: "docker", Op: "write_file", Err: err}
	}
	return nil
}

// ReadFile copies a file out of the container and unpacks the tar stream.
func (p *DockerProvider) ReadFile(ctx context.Context, handle *Handle, filePath string) ([]byte, error) {
	target := filePath
	if !strings.HasPrefix(target, "/") {
		target = path.Join(dockerWorkdir, target)
	}

	reader, _, err := p.cli.CopyFromContainer(ctx, handle.ProviderID, target)
	if err != nil {
		return nil, &Error{Provider: "docker", Op: "read_file", Err: err}
	}
	defer func() { _ = reader.Close() }()

	tr := tar.NewReader(reader)
	if _, err := tr.Next(); err != nil {
		return nil, &Error{Provider: "docker", Op: "read_file", Err: err}
	}

	data, err := io.ReadAll(tr)
	if err != nil {
		return nil, &Error{Provider: "docker", Op: "read_file", Err: err}
	}
	return data, nil
}

// ListFiles lists a directory with a find invocation inside the
// container.
func (p *DockerProvider) ListFiles(ctx context.Context, handle *Handle, dirPath string) ([]FileNode, error) {
	target := dirPath
	if target == "" {
		target = dockerWorkdir
	} else if !strings.HasPrefix(target, "/") {
		target = path.Join(dockerWorkdir, target)
	}

	result, err := p.exec(ctx, handle.ProviderID,
		fmt.Sprintf(`find %s -mindepth 1 -maxdepth 1 -printf '%%y %%p\n'`, target))
	if err != nil {
		return nil, &Error{Provider: "docker", Op: "list_files", Err: err}
	}
	if !result.Success {
		return nil, &Error{Provider: "docker", Op: "list_files",
			Err: fmt.Errorf("find exited %d: %s", result.ExitCode, result.Stderr)}
	}

	var nodes []FileNode
	for _, line := range strings.Split(strings.TrimSpace(result.Stdout), "\n") {
		if len(line) < 3 {
			continue
		}
		entryPath := line[2:]
		nodes = append(nodes, FileNode{
			Name:  path.Base(entryPath),
			Path:  entryPath,
			IsDir: line[0] == 'd',
		})
	}
	return nodes, nil
}

// Destroy force-removes the sandbox container and its volumes.
func (p *DockerProvider) Destroy(ctx context.Context, handle *Handle) error {
	err := p.cli.ContainerRemove(ctx, handle.ProviderID, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		return &Error{Provider: "docker", Op: "destroy", Err: err}
	}
	p.logger.Info("Sandbox container removed", zap.String("container_id", handle.ProviderID))
	return nil
}

func (p *DockerProvider) ensureImage(ctx context.Context) error {
	reader, err := p.cli.ImagePull(ctx, p.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", p.image, err)
	}
	defer func() { _ = reader.Close() }()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("error reading image pull output: %w", err)
	}
	return nil
}
