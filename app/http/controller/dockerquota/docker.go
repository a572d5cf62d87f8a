// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"github.com/gin-gonic/gin"
	"github.com/tjumyk/qman/app/pkg/e"
	"go.uber.org/zap"
)

// ContainerListEntry is one row of the /remote-api/docker/containers
// listing, joining live inspector data with stored attribution.
type ContainerListEntry struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ImageRef     string `json:"image_ref"`
	HostUserName string `json:"host_user_name"`
	UID          *int   `json:"uid"`
	SizeBytes    int64  `json:"size_bytes"`
}

// ImageListEntry is one row of the /remote-api/docker/images listing.
type ImageListEntry struct {
	ID                 string `json:"id"`
	SizeBytes          int64  `json:"size_bytes"`
	PullerHostUserName string `json:"puller_host_user_name"`
	PullerUID          *int   `json:"puller_uid"`
}

// VolumeListEntry is one row of the /remote-api/docker/volumes listing.
type VolumeListEntry struct {
	Name              string `json:"name"`
	HostUserName      string `json:"host_user_name"`
	UID               *int   `json:"uid"`
	SizeBytes         int64  `json:"size_bytes"`
	AttributionSource string `json:"attribution_source"`
}

// ListContainers returns the detailed container attribution listing,
// serving cached live data fronted per spec §4.D.
//
// Returns:
//   - gin.HandlerFunc: request handler for the container listing.
func (h handler) ListContainers() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := h.ctx(c)

		containers, hit := h.cache.GetContainers()
		if !hit {
			live, err := h.inspector.ListContainers(ctx, true)
			if err != nil {
				h.logger.Warn(ctx, "list containers failed", zap.Error(err))
				h.i18n.JSON(c, e.DockerBackendUnavailable, nil, err)
				return
			}
			containers = live
			h.cache.SetContainers(containers)
		}

		attributions, err := h.store.ListContainerAttributions()
		if err != nil {
			h.i18n.JSON(c, e.ERROR, nil, err)
			return
		}
		byID := make(map[string]ContainerListEntry, len(attributions))
		for _, att := range attributions {
			byID[att.ContainerID] = ContainerListEntry{
				HostUserName: att.HostUserName,
				UID:          att.UID,
				SizeBytes:    att.SizeBytes,
			}
		}

		entries := make([]ContainerListEntry, 0, len(containers))
		for _, info := range containers {
			entry := byID[info.ID]
			entry.ID = info.ID
			entry.Name = info.Name
			entry.ImageRef = info.ImageRef
			entries = append(entries, entry)
		}

		h.i18n.JSON(c, e.SUCCESS, entries, nil)
	}
}

// ListImages returns the detailed image attribution listing.
//
// Returns:
//   - gin.HandlerFunc: request handler for the image listing.
func (h handler) ListImages() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := h.ctx(c)

		images, hit := h.cache.GetImages()
		if !hit {
			live, err := h.inspector.ListImages(ctx)
			if err != nil {
				h.logger.Warn(ctx, "list images failed", zap.Error(err))
				h.i18n.JSON(c, e.DockerBackendUnavailable, nil, err)
				return
			}
			images = live
			h.cache.SetImages(images)
		}

		attributions, err := h.store.ListImageAttributions()
		if err != nil {
			h.i18n.JSON(c, e.ERROR, nil, err)
			return
		}
		byID := make(map[string]ImageListEntry, len(attributions))
		for _, att := range attributions {
			byID[att.ImageID] = ImageListEntry{
				PullerHostUserName: att.PullerHostUserName,
				PullerUID:          att.PullerUID,
			}
		}

		entries := make([]ImageListEntry, 0, len(images))
		for _, info := range images {
			entry := byID[info.ID]
			entry.ID = info.ID
			entry.SizeBytes = info.Size
			entries = append(entries, entry)
		}

		h.i18n.JSON(c, e.SUCCESS, entries, nil)
	}
}

// ListVolumes returns the detailed volume attribution listing.
//
// Returns:
//   - gin.HandlerFunc: request handler for the volume listing.
func (h handler) ListVolumes() gin.HandlerFunc {
	return func(c *gin.Context) {
		attributions, err := h.store.ListVolumeAttributions()
		if err != nil {
			h.i18n.JSON(c, e.ERROR, nil, err)
			return
		}

		entries := make([]VolumeListEntry, 0, len(attributions))
		for _, att := range attributions {
			entries = append(entries, VolumeListEntry{
				Name:              att.VolumeName,
				HostUserName:      att.HostUserName,
				UID:               att.UID,
				SizeBytes:         att.SizeBytes,
				AttributionSource: string(att.AttributionSource),
			})
		}

		h.i18n.JSON(c, e.SUCCESS, entries, nil)
	}
}
