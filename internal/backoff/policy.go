// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backoff decides how long to pause after a failed API call.
//
// Retries are not performed here: a transient failure yields a wait, and the
// caller's next scheduled poll is the retry. Keeping the decision separate from
// the sleep lets tests assert on the wait without sleeping.
package backoff

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"google.golang.org/api/googleapi"
)

// Class is the outcome of classifying an error.
type Class int

const (
	// None means there was no error.
	None Class = iota
	// Transient errors (rate limits, server faults) warrant a backoff pause.
	Transient
	// Permanent errors are logged and skipped without pausing.
	Permanent
)

func (c Class) String() string {
	switch c {
	case None:
		return "none"
	case Transient:
		return "transient"
	default:
		return "permanent"
	}
}

// DefaultTransientCodes are the HTTP statuses treated as rate limiting or
// server-side trouble.
var DefaultTransientCodes = []int{
	http.StatusForbidden,
	http.StatusInternalServerError,
	http.StatusServiceUnavailable,
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Decision is what a Policy prescribes for one error.
type Decision struct {
	Class Class
	Wait  time.Duration
}

// Policy maps an error to a Decision. The zero value uses the default
// transient codes, a multiplier of 2 and no interval.
type Policy struct {
	// TransientCodes lists HTTP statuses classified as Transient.
	TransientCodes []int

	// Interval is the nominal time between calls; the wait is Interval*Multiplier.
	Interval time.Duration

	// Multiplier scales Interval (default 2).
	Multiplier float64

	// Sleep performs the wait. Nil means SleepContext.
	Sleep SleepFunc
}

// New returns a Policy with the default codes and multiplier.
func New(interval time.Duration) Policy {
	return Policy{Interval: interval}
}

// StatusCode extracts an HTTP status from err. It understands
// *googleapi.Error and any error exposing StatusCode() int.
func StatusCode(err error) (int, bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// Classify sorts err into None, Transient, or Permanent.
func (p Policy) Classify(err error) Class {
	if err == nil {
		return None
	}
	code, ok := StatusCode(err)
	if !ok {
		return Permanent
	}
	codes := p.TransientCodes
	if len(codes) == 0 {
		codes = DefaultTransientCodes
	}
	if slices.Contains(codes, code) {
		return Transient
	}
	return Permanent
}

// Decide returns the class of err and how long to wait.
func (p Policy) Decide(err error) Decision {
	class := p.Classify(err)
	if class != Transient {
		return Decision{Class: class}
	}
	m := p.Multiplier
	if m <= 0 {
		m = 2
	}
	return Decision{Class: class, Wait: time.Duration(float64(p.Interval) * m)}
}

// Apply decides and performs the wait. A cancelled context cuts the wait short;
// the decision is returned either way.
func (p Policy) Apply(ctx context.Context, err error) Decision {
	d := p.Decide(err)
	if d.Wait > 0 {
		sleep := p.Sleep
		if sleep == nil {
			sleep = SleepContext
		}
		_ = sleep(ctx, d.Wait)
	}
	return d
}
