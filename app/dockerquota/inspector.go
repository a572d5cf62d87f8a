// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

// LayerSize pairs a layer id with its incremental size, oldest layer first.
type LayerSize struct {
	LayerID   string
	SizeBytes int64
}

// Inspector is the typed, cached read facade over the Docker daemon
// described in spec §4.A. One Inspector wraps one long-lived daemon client,
// constructed once at bootstrap per the explicit-lifetimes design note.
type Inspector struct {
	client *client.Client
	logger *logger.Manager
}

// NewInspector creates and validates an Inspector.
//
// Parameters:
//   - ctx: context used for the Docker ping validation.
//   - logger: logger manager retained by the Inspector.
//
// Returns:
//   - *Inspector: initialized inspector.
//   - error: returned when client creation or ping fails.
func NewInspector(ctx context.Context, logger *logger.Manager) (*Inspector, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	if _, err = cli.Ping(ctx); err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	return &Inspector{client: cli, logger: logger}, nil
}

// Close releases the underlying Docker client.
//
// Returns:
//   - error: close error, if any.
func (in *Inspector) Close() error {
	return in.client.Close()
}

// DataRoot returns the daemon's configured Docker root directory.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - string: docker root dir, falls back to "/var/lib/docker" on error.
func (in *Inspector) DataRoot(ctx context.Context) string {
	info, err := in.client.Info(ctx)
	if err != nil || info.DockerRootDir == "" {
		return "/var/lib/docker"
	}
	return info.DockerRootDir
}

// ListContainers lists containers, typed per spec §4.A.
//
// Parameters:
//   - ctx: request context.
//   - all: when true, includes stopped containers.
//
// Returns:
//   - []ContainerInfo: typed container listing.
//   - error: wrapped BackendUnavailable on Docker API failure.
func (in *Inspector) ListContainers(ctx context.Context, all bool) ([]ContainerInfo, error) {
	list, err := in.client.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	result := make([]ContainerInfo, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		shortID := c.ID
		if len(shortID) > 12 {
			shortID = shortID[:12]
		}

		var volumeNames []string
		for _, m := range c.Mounts {
			if m.Type == mount.TypeVolume && m.Name != "" {
				volumeNames = append(volumeNames, m.Name)
			}
		}

		result = append(result, ContainerInfo{
			ID:          c.ID,
			ShortID:     shortID,
			Name:        name,
			ImageRef:    c.Image,
			CreatedUnix: float64(c.Created),
			Labels:      c.Labels,
			VolumeNames: volumeNames,
		})
	}

	return result, nil
}

// ListImages lists images, typed per spec §4.A.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - []ImageInfo: typed image listing.
//   - error: wrapped BackendUnavailable on Docker API failure.
func (in *Inspector) ListImages(ctx context.Context) ([]ImageInfo, error) {
	list, err := in.client.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	result := make([]ImageInfo, 0, len(list))
	for _, img := range list {
		shortID := strings.TrimPrefix(img.ID, "sha256:")
		if len(shortID) > 12 {
			shortID = shortID[:12]
		}

		result = append(result, ImageInfo{
			ID:      img.ID,
			ShortID: shortID,
			Size:    img.Size,
			Created: img.Created,
		})
	}

	return result, nil
}

// GetSystemDF returns writable-layer sizes per container and reported sizes
// per image, optionally filtered to containerIDs to avoid a redundant
// listing when the caller already has the set.
//
// Parameters:
//   - ctx: request context.
//   - containerIDs: optional filter; nil means every container.
//
// Returns:
//   - *SystemDF: per-object size maps.
//   - error: wrapped BackendUnavailable on Docker API failure.
func (in *Inspector) GetSystemDF(ctx context.Context, containerIDs []string) (*SystemDF, error) {
	wanted := map[string]bool{}
	for _, id := range containerIDs {
		wanted[id] = true
	}

	df := &SystemDF{Containers: map[string]int64{}, Images: map[string]int64{}}

	containers, err := in.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	for _, c := range containers {
		if len(wanted) > 0 && !wanted[c.ID] {
			continue
		}

		inspectJSON, err := in.client.ContainerInspect(ctx, c.ID)
		if err != nil {
			// A single container failing to inspect shouldn't abort the pass.
			in.logger.Warn(ctx, "container inspect failed during system df", zap.String("container_id", c.ID), zap.Error(err))
			df.Containers[c.ID] = 0
			continue
		}

		if inspectJSON.SizeRw != nil {
			df.Containers[c.ID] = *inspectJSON.SizeRw
		}
	}

	images, err := in.client.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	for _, img := range images {
		df.Images[img.ID] = img.Size
	}

	return df, nil
}

// ResolveImageRef resolves a name:tag or short id to a full image id.
//
// Parameters:
//   - ctx: request context.
//   - ref: image reference, possibly a name:tag.
//
// Returns:
//   - string: resolved full image id, empty when not found.
//   - error: wrapped BackendUnavailable on unexpected Docker API failure.
func (in *Inspector) ResolveImageRef(ctx context.Context, ref string) (string, error) {
	inspectJSON, _, err := in.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", nil
		}
		return "", newError(BackendUnavailable, err)
	}

	return inspectJSON.ID, nil
}

// GetImageLayersWithSizes aligns layer ids from the image's root-fs
// descriptor (oldest-first) with incremental per-layer sizes from image
// history (newest-first, reversed here to match).
//
// Parameters:
//   - ctx: request context.
//   - imageID: full image id.
//
// Returns:
//   - []LayerSize: ordered oldest-first layer id/size pairs.
//   - error: wrapped BackendUnavailable on Docker API failure.
func (in *Inspector) GetImageLayersWithSizes(ctx context.Context, imageID string) ([]LayerSize, error) {
	inspectJSON, _, err := in.client.ImageInspectWithRaw(ctx, imageID)
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	layerIDs := inspectJSON.RootFS.Layers

	history, err := in.client.ImageHistory(ctx, imageID)
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}

	// history is newest-first; reverse to align oldest-first with layerIDs.
	sizes := make([]int64, len(history))
	for i, h := range history {
		sizes[len(history)-1-i] = h.Size
	}

	result := make([]LayerSize, len(layerIDs))
	for i, id := range layerIDs {
		var size int64
		if i < len(sizes) {
			size = sizes[i]
		}
		result[i] = LayerSize{LayerID: id, SizeBytes: size}
	}

	return result, nil
}

// StopContainer stops a container with the given grace period.
//
// Parameters:
//   - ctx: request context.
//   - id: container id.
//   - grace: time to wait before killing.
//
// Returns:
//   - error: wrapped EnforcementActionFailed on Docker API failure.
func (in *Inspector) StopContainer(ctx context.Context, id string, grace time.Duration) error {
	timeoutSeconds := int(grace.Seconds())
	if err := in.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeoutSeconds}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return newError(EnforcementActionFailed, err)
	}
	return nil
}

// RemoveContainer removes a container.
//
// Parameters:
//   - ctx: request context.
//   - id: container id.
//   - force: force-remove even if running.
//
// Returns:
//   - error: wrapped EnforcementActionFailed on Docker API failure.
func (in *Inspector) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := in.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: force}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return newError(EnforcementActionFailed, err)
	}
	return nil
}

// ListVolumes lists Docker volumes with reference counts and sizes, used by
// the volume-attribution backfill path.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - []*volume.Volume: raw volume listing.
//   - error: wrapped BackendUnavailable on Docker API failure.
func (in *Inspector) ListVolumes(ctx context.Context) ([]*volume.Volume, error) {
	resp, err := in.client.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, newError(BackendUnavailable, err)
	}
	return resp.Volumes, nil
}

// StreamEventsSince is the bounded blocking collector described in spec
// §4.A/§9: it starts the event stream, accumulates into a buffer, and
// returns when max_wall elapses, max_events is reached, or the stream ends
// -- whichever happens first. It releases the underlying stream
// deterministically on return.
//
// Parameters:
//   - ctx: parent context; a child context bounds the subscription itself.
//   - sinceUnix: Unix-seconds lower bound for the event window.
//   - maxWall: wall-clock ceiling for collection.
//   - maxEvents: event-count ceiling for collection.
//
// Returns:
//   - []DockerEvent: collected events, oldest first.
//   - error: wrapped BackendUnavailable only for the initial subscribe
//     failure; partial results on timeout are not an error.
func (in *Inspector) StreamEventsSince(ctx context.Context, sinceUnix float64, maxWall time.Duration, maxEvents int) ([]DockerEvent, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sec := int64(sinceUnix)
	nsec := int64((sinceUnix - float64(sec)) * 1e9)
	since := strconv.FormatInt(sec, 10) + "." + strconv.FormatInt(nsec, 10)

	msgCh, errCh := in.client.Events(subCtx, events.ListOptions{Since: since})

	done := make(chan struct{})
	var collected []DockerEvent
	var streamErr error

	go func() {
		defer close(done)
		for {
			select {
			case msg, ok := <-msgCh:
				if !ok {
					return
				}
				collected = append(collected, toDockerEvent(msg))
				if len(collected) >= maxEvents {
					return
				}
			case err, ok := <-errCh:
				if !ok || err != nil {
					if err != nil && subCtx.Err() == nil && len(collected) == 0 {
						streamErr = err
					}
					return
				}
			case <-subCtx.Done():
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(maxWall):
		cancel()
		<-done
	}

	if streamErr != nil {
		return nil, newError(BackendUnavailable, streamErr)
	}
	return collected, nil
}

// toDockerEvent converts a Docker SDK event message into the explicit
// DockerEvent schema mandated by spec §9.
func toDockerEvent(msg events.Message) DockerEvent {
	var from *string
	if msg.From != "" {
		f := msg.From
		from = &f
	}

	return DockerEvent{
		Type:     string(msg.Type),
		Action:   string(msg.Action),
		ID:       msg.Actor.ID,
		TimeNano: msg.TimeNano,
		From:     from,
	}
}
