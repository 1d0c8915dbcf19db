package model

import "time"

// SourceKind tells where an application's descriptor comes from.
type SourceKind string

const (
	SourceControlled SourceKind = "source_controlled"
	DescriptorOnly   SourceKind = "descriptor_only"
)

// MinAutoUpdateIntervalMinutes is the lowest accepted update check interval.
const MinAutoUpdateIntervalMinutes = 5

// App is the persisted record of one managed application.
type App struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	DisplayName    string     `json:"display_name"`
	SourceKind     SourceKind `json:"source_kind"`
	SourceLocation string     `json:"source_location,omitempty"`

	Status        Status `json:"status"`
	StatusMessage string `json:"status_message,omitempty"`
	Installed     bool   `json:"installed"`
	Running       bool   `json:"running"`

	AutoUpdate                bool `json:"auto_update"`
	AutoUpdateIntervalMinutes int  `json:"auto_update_interval_minutes"`

	CurrentVersion string    `json:"current_version,omitempty"`
	LatestVersion  string    `json:"latest_version,omitempty"`
	LastCheckedAt  time.Time `json:"last_checked_at,omitempty"`

	// RawDescriptor is the descriptor last read from the source tree.
	RawDescriptor string `json:"raw_descriptor,omitempty"`
	// WorkingDescriptor is the descriptor the user edits and the pipeline
	// applies, before preprocessing.
	WorkingDescriptor string `json:"working_descriptor,omitempty"`
	ImageRef          string `json:"image_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity returns the name the deployment backend knows the application by.
func (a *App) Identity() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// UpdateAvailable reports whether the last check saw a different version.
// Version markers are opaque, only equality is meaningful.
func (a *App) UpdateAvailable() bool {
	return a.LatestVersion != "" && a.LatestVersion != a.CurrentVersion
}

// UpdateCheckDue reports whether an update check should run at now.
func (a *App) UpdateCheckDue(now time.Time) bool {
	if !a.AutoUpdate || a.SourceKind != SourceControlled {
		return false
	}
	interval := a.AutoUpdateIntervalMinutes
	if interval < MinAutoUpdateIntervalMinutes {
		interval = MinAutoUpdateIntervalMinutes
	}
	return a.LastCheckedAt.IsZero() || now.Sub(a.LastCheckedAt) >= time.Duration(interval)*time.Minute
}

// Clone returns a copy safe to mutate independently of a.
func (a *App) Clone() *App {
	c := *a
	return &c
}

// AppDetails is a record together with its observed runtime state.
type AppDetails struct {
	App             *App          `json:"app"`
	UpdateAvailable bool          `json:"update_available"`
	Runtime         *ContainerApp `json:"runtime,omitempty"`
}
