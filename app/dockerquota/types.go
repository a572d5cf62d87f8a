// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package dockerquota

// ContainerInfo is the typed shape returned by the inspector's container
// listing, replacing the source's dict[str, Any] rows per spec §9.
type ContainerInfo struct {
	ID          string
	ShortID     string
	Name        string
	ImageRef    string
	CreatedISO  string
	CreatedUnix float64
	Labels      map[string]string
	VolumeNames []string
}

// ImageInfo is the typed shape returned by the inspector's image listing.
type ImageInfo struct {
	ID      string
	ShortID string
	Size    int64
	Created int64
}

// SystemDF is the typed shape returned by GetSystemDF.
type SystemDF struct {
	Containers map[string]int64 // container id -> writable layer size bytes
	Images     map[string]int64 // image id -> size bytes
}

// DockerEvent is an explicit record for one Docker daemon event, replacing
// reflective dict access over the event payload per spec §9.
type DockerEvent struct {
	Type     string
	Action   string
	ID       string
	TimeNano int64
	From     *string
}

// AuditRecord is one normalised Linux-audit record tagged with a
// Docker-related key.
type AuditRecord struct {
	TimestampUnix float64
	TimestampRaw  string
	InitiatorUID  *int
	InitiatorName string
	EffectiveUID  *int
	PID           *int
	Key           string
	Exe           string
	Comm          string
	RawMsg        string
}

// AuditHealth is the diagnostic payload returned by CheckHealth.
type AuditHealth struct {
	ToolPresent        bool
	DaemonRunning      bool
	DockerRulesPresent bool
	Rules              []string
	Errors             []string
}
