package driver

import "context"

// Schedule implements /VolumeDriver.Schedule.
func (d *Driver) Schedule(ctx context.Context, req scheduleRequest) response {
	if err := d.Registry.Upsert(req.Name, req.Action, req.Timer); err != nil {
		return response{Err: err.Error()}
	}
	return response{}
}

// ScheduleList implements /VolumeDriver.Schedule.List.
func (d *Driver) ScheduleList(ctx context.Context) scheduleListResponse {
	jobs, err := d.Registry.List()
	if err != nil {
		return scheduleListResponse{response: response{Err: err.Error()}}
	}
	return scheduleListResponse{Schedule: jobs}
}

// SchedulePause implements /VolumeDriver.Schedule.Pause.
func (d *Driver) SchedulePause(ctx context.Context) response {
	if err := d.Pause.Pause(); err != nil {
		return response{Err: err.Error()}
	}
	return response{}
}

// ScheduleResume implements /VolumeDriver.Schedule.Resume.
func (d *Driver) ScheduleResume(ctx context.Context) response {
	if err := d.Pause.Resume(); err != nil {
		return response{Err: err.Error()}
	}
	return response{}
}
