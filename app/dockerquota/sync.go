// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

import (
	"context"
	"os/user"
	"sort"
	"strconv"
	"time"

	model "github.com/tjumyk/qman/app/model/dockerquota"
	repository "github.com/tjumyk/qman/app/repository/dockerquota"
	"github.com/sk-pkg/logger"
	"go.uber.org/zap"
)

const (
	// ownerLabelKey is the explicit-owner container/volume label consulted
	// before falling back to audit correlation.
	ownerLabelKey = "qman.user"

	// timeWindowSeconds is the ±tolerance used to match an event or a
	// container's creation time against an audit record's timestamp.
	timeWindowSeconds = 120

	// auditLookback is passed to the audit reader for every phase.
	auditLookback = "60m"

	// eventCollectMaxWall and eventCollectMaxEvents bound the Phase 2
	// event-stream collector.
	eventCollectMaxWall   = 90 * time.Second
	eventCollectMaxEvents = 500
)

// auditCandidate is one (timestamp, uid) pair usable for time-window
// correlation, kept sorted ascending by timestamp.
type auditCandidate struct {
	timestamp float64
	uid       int
}

// ContainerSyncResult reports Phase 1 counts.
type ContainerSyncResult struct {
	Attributed              int
	SkippedNoCreatedTS       int
	SkippedNoAuditMatch      int
}

// EventSyncResult reports Phase 2 counts.
type EventSyncResult struct {
	ContainersAttributed int
	ImagesAttributed     int
}

// ExistingImageSyncResult reports Phase 3 counts.
type ExistingImageSyncResult struct {
	ImagesWithNewLayers int
	LayersReconciled    int64
}

// Synchroniser runs the three-phase attribution reconciliation pass
// described in spec §4.E, writing into the store using data read from the
// inspector, the audit reader and the cache.
type Synchroniser struct {
	inspector *Inspector
	audit     *AuditReader
	cache     *Cache
	store     repository.Repo
	logger    *logger.Manager
}

// NewSynchroniser creates a Synchroniser.
//
// Parameters:
//   - inspector: Docker read facade.
//   - audit: audit-search reader.
//   - cache: listing cache, invalidated on mutating events.
//   - store: attribution persistence layer.
//   - logger: logger manager.
//
// Returns:
//   - *Synchroniser: initialized synchroniser.
func NewSynchroniser(inspector *Inspector, audit *AuditReader, cache *Cache, store repository.Repo, logger *logger.Manager) *Synchroniser {
	return &Synchroniser{inspector: inspector, audit: audit, cache: cache, store: store, logger: logger}
}

// resolveUserName looks up the local user database entry for uid, falling
// back to a synthetic name when the lookup fails, per spec §7
// UserResolutionFailure.
//
// Parameters:
//   - uid: resolved owner uid.
//
// Returns:
//   - string: the account name, or "user_<uid>" when unresolvable.
func resolveUserName(uid int) string {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return "user_" + strconv.Itoa(uid)
	}
	return u.Username
}

// resolveUID looks up the local uid for an account name, used for the
// explicit owner label.
//
// Parameters:
//   - name: account name from a qman.user label.
//
// Returns:
//   - *int: resolved uid, nil when the name cannot be resolved.
func resolveUID(name string) *int {
	u, err := user.Lookup(name)
	if err != nil {
		return nil
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil
	}
	return &uid
}

// buildAuditCandidates reads audit records over the shared look-back window
// and reduces them to a timestamp-sorted (timestamp, uid) list, preferring
// the initiator uid over the effective uid per spec §4.B.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - []auditCandidate: ascending-by-timestamp candidates; a record lacking
//     either a usable uid or a usable timestamp is dropped.
func (s *Synchroniser) buildAuditCandidates(ctx context.Context) []auditCandidate {
	records, err := s.audit.ReadAuditRecords(ctx, DefaultAuditKeys, auditLookback)
	if err != nil {
		s.logger.Warn(ctx, "audit read failed during sync", zap.Error(err))
		return nil
	}

	candidates := make([]auditCandidate, 0, len(records))
	for _, rec := range records {
		uid := rec.InitiatorUID
		if uid == nil {
			uid = rec.EffectiveUID
		}
		if uid == nil || rec.TimestampUnix == 0 {
			continue
		}
		candidates = append(candidates, auditCandidate{timestamp: rec.TimestampUnix, uid: *uid})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].timestamp < candidates[j].timestamp })
	return candidates
}

// bestAuditMatch finds the candidate within ±timeWindowSeconds of target
// with the smallest absolute delta; on exact tie, the earliest candidate in
// scan order wins because the loop only replaces on a strictly smaller
// delta.
//
// Parameters:
//   - candidates: ascending-by-timestamp audit candidates.
//   - target: event or creation Unix timestamp to match against.
//
// Returns:
//   - *int: matched uid, nil when no candidate falls within the window.
func bestAuditMatch(candidates []auditCandidate, target float64) *int {
	var bestUID *int
	bestDelta := float64(timeWindowSeconds) + 1
	for _, c := range candidates {
		delta := c.timestamp - target
		if delta < 0 {
			delta = -delta
		}
		if delta <= timeWindowSeconds && delta < bestDelta {
			bestDelta = delta
			uid := c.uid
			bestUID = &uid
		}
	}
	return bestUID
}

// SyncContainersFromAudit is Phase 1: gives every extant container an
// owner, per spec §4.E.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - ContainerSyncResult: attributed/skipped counts.
func (s *Synchroniser) SyncContainersFromAudit(ctx context.Context) ContainerSyncResult {
	var result ContainerSyncResult

	containers, err := s.inspector.ListContainers(ctx, true)
	if err != nil {
		s.logger.Warn(ctx, "list containers failed during audit sync", zap.Error(err))
		return result
	}

	existing, err := s.store.ListContainerAttributions()
	if err != nil {
		s.logger.Warn(ctx, "list container attributions failed during audit sync", zap.Error(err))
		return result
	}
	attributed := make(map[string]model.ContainerAttribution, len(existing))
	for _, a := range existing {
		attributed[a.ContainerID] = a
	}

	df, err := s.inspector.GetSystemDF(ctx, nil)
	if err != nil {
		s.logger.Warn(ctx, "system df failed during audit sync", zap.Error(err))
		df = &SystemDF{Containers: map[string]int64{}, Images: map[string]int64{}}
	}

	candidates := s.buildAuditCandidates(ctx)

	for _, c := range containers {
		if _, ok := attributed[c.ID]; ok {
			if size, has := df.Containers[c.ID]; has && size > 0 {
				if err := s.store.UpdateContainerSize(c.ID, size); err != nil {
					s.logger.Warn(ctx, "refresh container size failed", zap.String("container_id", c.ID), zap.Error(err))
				}
			}
			continue
		}

		if ownerName, ok := c.Labels[ownerLabelKey]; ok && ownerName != "" {
			uid := resolveUID(ownerName)
			if uid == nil {
				result.SkippedNoAuditMatch++
				continue
			}
			if err := s.store.SetContainerAttribution(c.ID, ownerName, uid, c.ImageRef, df.Containers[c.ID]); err != nil {
				s.logger.Warn(ctx, "set labeled container attribution failed", zap.String("container_id", c.ID), zap.Error(err))
				continue
			}
			result.Attributed++
			continue
		}

		if c.CreatedUnix <= 0 {
			result.SkippedNoCreatedTS++
			continue
		}

		uid := bestAuditMatch(candidates, c.CreatedUnix)
		if uid == nil {
			result.SkippedNoAuditMatch++
			continue
		}

		name := resolveUserName(*uid)
		if err := s.store.SetContainerAttribution(c.ID, name, uid, c.ImageRef, df.Containers[c.ID]); err != nil {
			s.logger.Warn(ctx, "set audit-matched container attribution failed", zap.String("container_id", c.ID), zap.Error(err))
			continue
		}
		result.Attributed++
	}

	liveIDs := make([]string, 0, len(containers))
	for _, c := range containers {
		liveIDs = append(liveIDs, c.ID)
	}
	if _, err := s.store.ReconcileContainers(liveIDs); err != nil {
		s.logger.Warn(ctx, "reconcile containers failed", zap.Error(err))
	}

	return result
}

// SyncFromDockerEvents is Phase 2: catches create/pull/tag/import/load/commit
// events as they happen, per spec §4.E.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - EventSyncResult: container/image attribution counts.
func (s *Synchroniser) SyncFromDockerEvents(ctx context.Context) EventSyncResult {
	var result EventSyncResult

	nowUnix := nowSeconds()

	sinceTS := nowUnix - 24*3600
	if raw, err := s.store.GetSetting(model.SettingKeyEventsLastTS); err == nil && raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			sinceTS = parsed
		}
	}

	events, err := s.inspector.StreamEventsSince(ctx, sinceTS, eventCollectMaxWall, eventCollectMaxEvents)
	if err != nil {
		s.logger.Warn(ctx, "collect docker events failed", zap.Error(err))
		events = nil
	}

	candidates := s.buildAuditCandidates(ctx)

	df, err := s.inspector.GetSystemDF(ctx, nil)
	if err != nil {
		df = &SystemDF{Containers: map[string]int64{}, Images: map[string]int64{}}
	}

	containersInvalidated := false
	imagesInvalidated := false

	for _, ev := range events {
		if ev.ID == "" {
			continue
		}

		evTS := float64(ev.TimeNano) / 1e9

		switch {
		case ev.Type == "container" && isContainerCacheAction(ev.Action):
			if !containersInvalidated {
				s.cache.InvalidateContainers()
				containersInvalidated = true
			}
		case ev.Type == "image" && isImageCacheAction(ev.Action):
			if !imagesInvalidated {
				s.cache.InvalidateImages()
				imagesInvalidated = true
			}
		}

		switch {
		case ev.Type == "container" && ev.Action == "create":
			if s.refreshContainerIfAttributed(ctx, ev.ID, df.Containers[ev.ID]) {
				continue
			}
			uid := bestAuditMatch(candidates, evTS)
			if uid == nil {
				continue
			}
			name := resolveUserName(*uid)
			if err := s.store.SetContainerAttribution(ev.ID, name, uid, "", df.Containers[ev.ID]); err != nil {
				s.logger.Warn(ctx, "attribute container from event failed", zap.String("container_id", ev.ID), zap.Error(err))
				continue
			}
			result.ContainersAttributed++

		case ev.Type == "container" && ev.Action == "commit":
			if s.attributeCommittedImage(ctx, ev.ID, candidates, evTS, df.Images) {
				result.ImagesAttributed++
			}

		case ev.Type == "image" && ev.Action == "pull":
			if s.attributeImageEvent(ctx, ev.ID, candidates, evTS, df.Images, model.CreationMethodPull) {
				result.ImagesAttributed++
			}

		case ev.Type == "image" && ev.Action == "tag":
			if s.attributeNewImageOnly(ctx, ev.ID, candidates, evTS, df.Images, model.CreationMethodBuild) {
				result.ImagesAttributed++
			}

		case ev.Type == "image" && ev.Action == "import":
			if s.attributeNewImageOnly(ctx, ev.ID, candidates, evTS, df.Images, model.CreationMethodImport) {
				result.ImagesAttributed++
			}

		case ev.Type == "image" && ev.Action == "load":
			if s.attributeNewImageOnly(ctx, ev.ID, candidates, evTS, df.Images, model.CreationMethodLoad) {
				result.ImagesAttributed++
			}
		}
	}

	if err := s.store.SetSetting(model.SettingKeyEventsLastTS, strconv.FormatFloat(nowUnix, 'f', -1, 64)); err != nil {
		s.logger.Warn(ctx, "persist event watermark failed", zap.Error(err))
	}

	return result
}

// refreshContainerIfAttributed refreshes size_bytes for an already-attributed
// container, reporting whether a row existed.
func (s *Synchroniser) refreshContainerIfAttributed(ctx context.Context, containerID string, size int64) bool {
	existing, err := s.store.GetContainerAttribution(containerID)
	if err != nil || existing == nil {
		return false
	}
	if size > 0 {
		if err := s.store.UpdateContainerSize(containerID, size); err != nil {
			s.logger.Warn(ctx, "refresh container size from event failed", zap.String("container_id", containerID), zap.Error(err))
		}
	}
	return true
}

// attributeCommittedImage attributes a newly-committed image to its source
// container's owner when known, else to the best audit match, and
// immediately attributes the image's layers.
func (s *Synchroniser) attributeCommittedImage(ctx context.Context, imageID string, candidates []auditCandidate, evTS float64, imageSizes map[string]int64) bool {
	existing, _ := s.store.GetImageAttribution(imageID)
	if existing != nil {
		return false
	}

	var uid *int
	var name string

	if container, err := s.store.GetContainerAttribution(imageID); err == nil && container != nil && container.UID != nil {
		uid = container.UID
		name = container.HostUserName
	} else {
		uid = bestAuditMatch(candidates, evTS)
		if uid == nil {
			return false
		}
		name = resolveUserName(*uid)
	}

	return s.attributeImageAndLayers(ctx, imageID, name, uid, imageSizes[imageID], model.CreationMethodCommit)
}

// attributeImageEvent attributes (or refreshes) an image on a pull event,
// unconditionally overwriting nothing once attributed.
func (s *Synchroniser) attributeImageEvent(ctx context.Context, rawRef string, candidates []auditCandidate, evTS float64, imageSizes map[string]int64, method model.CreationMethod) bool {
	imageID, err := s.inspector.ResolveImageRef(ctx, rawRef)
	if err != nil || imageID == "" {
		imageID = rawRef
	}

	if existing, err := s.store.GetImageAttribution(imageID); err == nil && existing != nil {
		if size := imageSizes[imageID]; size > 0 {
			if _, err := s.store.SetImageAttribution(imageID, existing.PullerHostUserName, existing.PullerUID, size); err != nil {
				s.logger.Warn(ctx, "refresh image size from event failed", zap.String("image_id", imageID), zap.Error(err))
			}
		}
		return false
	}

	uid := bestAuditMatch(candidates, evTS)
	if uid == nil {
		return false
	}
	name := resolveUserName(*uid)

	return s.attributeImageAndLayers(ctx, imageID, name, uid, imageSizes[imageID], method)
}

// attributeNewImageOnly attributes an image only when it has never been
// seen before, used for tag/import/load events.
func (s *Synchroniser) attributeNewImageOnly(ctx context.Context, rawRef string, candidates []auditCandidate, evTS float64, imageSizes map[string]int64, method model.CreationMethod) bool {
	imageID, err := s.inspector.ResolveImageRef(ctx, rawRef)
	if err != nil || imageID == "" {
		imageID = rawRef
	}

	if existing, err := s.store.GetImageAttribution(imageID); err == nil && existing != nil {
		return false
	}

	uid := bestAuditMatch(candidates, evTS)
	if uid == nil {
		return false
	}
	name := resolveUserName(*uid)

	return s.attributeImageAndLayers(ctx, imageID, name, uid, imageSizes[imageID], method)
}

// attributeImageAndLayers writes the image attribution then attributes every
// layer of the image to the same owner (first-writer-wins per layer).
func (s *Synchroniser) attributeImageAndLayers(ctx context.Context, imageID, name string, uid *int, size int64, method model.CreationMethod) bool {
	if _, err := s.store.SetImageAttribution(imageID, name, uid, size); err != nil {
		s.logger.Warn(ctx, "set image attribution failed", zap.String("image_id", imageID), zap.Error(err))
		return false
	}

	layers, err := s.inspector.GetImageLayersWithSizes(ctx, imageID)
	if err != nil {
		s.logger.Warn(ctx, "get image layers failed", zap.String("image_id", imageID), zap.Error(err))
		return true
	}

	for _, l := range layers {
		if _, err := s.store.SetLayerAttribution(l.LayerID, uid, name, l.SizeBytes, method); err != nil {
			s.logger.Warn(ctx, "set layer attribution failed", zap.String("layer_id", l.LayerID), zap.Error(err))
		}
	}

	return true
}

// SyncExistingImages is Phase 3: ensures every layer of every known image is
// attributed, and prunes dead layers, per spec §4.E.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - ExistingImageSyncResult: images-with-new-layers count and layers
//     reconciled count.
func (s *Synchroniser) SyncExistingImages(ctx context.Context) ExistingImageSyncResult {
	var result ExistingImageSyncResult

	images, err := s.inspector.ListImages(ctx)
	if err != nil {
		s.logger.Warn(ctx, "list images failed during existing-image sync", zap.Error(err))
		return result
	}

	imageAttributions, err := s.store.ListImageAttributions()
	if err != nil {
		s.logger.Warn(ctx, "list image attributions failed during existing-image sync", zap.Error(err))
		return result
	}
	attributed := make(map[string]model.ImageAttribution, len(imageAttributions))
	for _, a := range imageAttributions {
		attributed[a.ImageID] = a
	}

	liveLayerIDs := map[string]struct{}{}

	for _, img := range images {
		att, ok := attributed[img.ID]

		layers, err := s.inspector.GetImageLayersWithSizes(ctx, img.ID)
		if err != nil {
			s.logger.Warn(ctx, "get image layers failed during existing-image sync", zap.String("image_id", img.ID), zap.Error(err))
			continue
		}
		for _, l := range layers {
			liveLayerIDs[l.LayerID] = struct{}{}
		}

		if !ok {
			continue
		}

		hasNew := false
		for _, l := range layers {
			if existing, err := s.store.GetLayerAttribution(l.LayerID); err == nil && existing == nil {
				hasNew = true
				break
			}
		}
		if !hasNew {
			continue
		}

		newCount := 0
		for _, l := range layers {
			created, err := s.store.SetLayerAttribution(l.LayerID, att.PullerUID, att.PullerHostUserName, l.SizeBytes, model.CreationMethodNone)
			if err != nil {
				s.logger.Warn(ctx, "attribute existing-image layer failed", zap.String("layer_id", l.LayerID), zap.Error(err))
				continue
			}
			if created {
				newCount++
			}
		}
		if newCount > 0 {
			result.ImagesWithNewLayers++
		}
	}

	ids := make([]string, 0, len(liveLayerIDs))
	for id := range liveLayerIDs {
		ids = append(ids, id)
	}

	removed, err := s.store.ReconcileLayers(ids)
	if err != nil {
		s.logger.Warn(ctx, "reconcile layers failed", zap.Error(err))
	} else {
		result.LayersReconciled = removed
	}

	return result
}

// VolumeSyncResult reports volume attribution sync counts.
type VolumeSyncResult struct {
	Attributed int
}

// SyncVolumes attributes Docker volumes per spec §3's VolumeAttribution
// invariant: an explicit qman.user label always wins; absent a label, a
// volume is attributed to the owner of any attributed container that
// mounts it. SetVolumeAttribution enforces label-over-container precedence
// and dangling-volume retention on the store side.
//
// Parameters:
//   - ctx: request context.
//
// Returns:
//   - VolumeSyncResult: attributed count.
func (s *Synchroniser) SyncVolumes(ctx context.Context) VolumeSyncResult {
	var result VolumeSyncResult

	volumes, err := s.inspector.ListVolumes(ctx)
	if err != nil {
		s.logger.Warn(ctx, "list volumes failed during volume sync", zap.Error(err))
		return result
	}

	containers, err := s.inspector.ListContainers(ctx, true)
	if err != nil {
		s.logger.Warn(ctx, "list containers failed during volume sync", zap.Error(err))
		containers = nil
	}

	containerAttrByID := map[string]model.ContainerAttribution{}
	if attrs, err := s.store.ListContainerAttributions(); err == nil {
		for _, a := range attrs {
			containerAttrByID[a.ContainerID] = a
		}
	}

	// First attributed container observed mounting a volume determines its
	// container-sourced owner.
	ownerByVolume := map[string]model.ContainerAttribution{}
	for _, c := range containers {
		att, ok := containerAttrByID[c.ID]
		if !ok || att.UID == nil {
			continue
		}
		for _, vn := range c.VolumeNames {
			if _, exists := ownerByVolume[vn]; !exists {
				ownerByVolume[vn] = att
			}
		}
	}

	for _, v := range volumes {
		var sizeBytes int64
		if v.UsageData != nil {
			sizeBytes = v.UsageData.Size
		}

		if ownerName, ok := v.Labels[ownerLabelKey]; ok && ownerName != "" {
			uid := resolveUID(ownerName)
			if uid == nil {
				continue
			}
			if err := s.store.SetVolumeAttribution(v.Name, ownerName, uid, sizeBytes, model.AttributionSourceLabel); err != nil {
				s.logger.Warn(ctx, "set labeled volume attribution failed", zap.String("volume_name", v.Name), zap.Error(err))
				continue
			}
			result.Attributed++
			continue
		}

		att, ok := ownerByVolume[v.Name]
		if !ok {
			continue
		}
		if err := s.store.SetVolumeAttribution(v.Name, att.HostUserName, att.UID, sizeBytes, model.AttributionSourceContainer); err != nil {
			s.logger.Warn(ctx, "set container-sourced volume attribution failed", zap.String("volume_name", v.Name), zap.Error(err))
			continue
		}
		result.Attributed++
	}

	return result
}

// isContainerCacheAction reports whether a container event action should
// invalidate the container listing cache.
func isContainerCacheAction(action string) bool {
	switch action {
	case "create", "destroy", "die", "kill", "start", "stop":
		return true
	}
	return false
}

// isImageCacheAction reports whether an image event action should invalidate
// the image listing cache.
func isImageCacheAction(action string) bool {
	switch action {
	case "pull", "push", "tag", "untag", "delete", "remove":
		return true
	}
	return false
}

// nowSeconds returns the current Unix time as floating-point seconds.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
