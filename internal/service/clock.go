package service

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc 便于测试固定时间
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}
