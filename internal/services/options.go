package services

import "time"

// Option configures a service
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the source of timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// utcNow returns the current time in UTC so stored timestamps compare as text
func (o options) utcNow() time.Time {
	return o.now().UTC()
}

// optionalString maps "" to nil for nullable columns
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
