package ports

import "time"

// Task is a handle on a scheduled action.
type Task interface {
	Cancel()
}

// Scheduler runs keyed deferred actions. Scheduling a key that is already
// pending replaces the previous task.
type Scheduler interface {
	ScheduleOnce(key string, delay time.Duration, action func()) Task
	ScheduleRepeating(key string, interval time.Duration, action func()) Task
	Cancel(key string)
}

type Clock interface {
	Now() time.Time
}
