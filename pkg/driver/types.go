package driver

import "github.com/anybox/buttervolume/pkg/types"

// response is embedded in every handler's success/failure payload: the
// Docker volume plugin wire contract always carries an Err string, empty
// on success.
type response struct {
	Err string `json:"Err"`
}

// ErrString returns the response's Err field, empty on success. Exported so
// pkg/server can label request metrics by outcome without a type switch
// over every concrete response type.
func (r response) ErrString() string {
	return r.Err
}

type createRequest struct {
	Name string `json:"Name"`
}

type removeRequest struct {
	Name string `json:"Name"`
}

type mountRequest struct {
	Name string `json:"Name"`
}

type mountResponse struct {
	response
	Mountpoint string `json:"Mountpoint,omitempty"`
}

type getResponse struct {
	response
	Volume *types.Volume `json:"Volume,omitempty"`
}

type listResponse struct {
	response
	Volumes []types.Volume `json:"Volumes,omitempty"`
}

type capabilitiesResponse struct {
	response
	Capabilities capabilities `json:"Capabilities"`
}

type capabilities struct {
	Scope string `json:"Scope"`
}

type activateResponse struct {
	response
	Implements []string `json:"Implements"`
}

type snapshotRequest struct {
	Name string `json:"Name"`
}

type snapshotResponse struct {
	response
	Snapshot string `json:"Snapshot,omitempty"`
}

type snapshotListRequest struct {
	Name string `json:"Name,omitempty"`
}

// snapshotListResponse carries a flat list of snapshot names, matching the
// original plugin's wire shape (a list of strings, not objects).
type snapshotListResponse struct {
	response
	Snapshots []string `json:"Snapshots,omitempty"`
}

type snapshotRemoveRequest struct {
	Name string `json:"Name"`
}

type snapshotRestoreRequest struct {
	Name   string `json:"Name"`
	Target string `json:"Target,omitempty"`
}

type snapshotRestoreResponse struct {
	response
	VolumeBackup string `json:"VolumeBackup,omitempty"`
}

type cloneRequest struct {
	Name   string `json:"Name"`
	Target string `json:"Target"`
}

type cloneResponse struct {
	response
	VolumeCloned string `json:"VolumeCloned,omitempty"`
}

type snapshotSendRequest struct {
	Name string `json:"Name"`
	Host string `json:"Host"`
	Test bool   `json:"Test,omitempty"`
}

type purgeRequest struct {
	Name    string `json:"Name"`
	Pattern string `json:"Pattern"`
	Dryrun  bool   `json:"Dryrun,omitempty"`
	Test    bool   `json:"Test,omitempty"`
}

type volumeSyncRequest struct {
	Volumes []string `json:"Volumes"`
	Hosts   []string `json:"Hosts"`
	Test    bool     `json:"Test,omitempty"`
}

type scheduleRequest struct {
	Name   string `json:"Name"`
	Action string `json:"Action"`
	Timer  int    `json:"Timer"`
}

type scheduleListResponse struct {
	response
	Schedule []types.ScheduledJob `json:"Schedule,omitempty"`
}
