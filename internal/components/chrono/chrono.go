package chrono

import (
	"sync"
	"time"
)

// TimeAPI is the interface that anything depending on the system clock should use.
type TimeAPI interface {
	Now() time.Time
}

// StandardTime is the standard implementation of TimeAPI using the standard library.
type StandardTime struct{}

// NewStandardTime is the constructor of StandardTime.
func NewStandardTime() StandardTime {
	return StandardTime{}
}

func (StandardTime) Now() time.Time {
	return time.Now()
}

// FakeTime is a TimeAPI whose clock only moves when told to.
type FakeTime struct {
	mutex sync.Mutex
	now   time.Time
}

func NewFakeTime(start time.Time) *FakeTime {
	return &FakeTime{now: start}
}

func (f *FakeTime) Now() time.Time {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.now
}

func (f *FakeTime) Advance(d time.Duration) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.now = f.now.Add(d)
}

// Timestamp formats t the way run artifacts (failed logs, exports) are named.
func Timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}
