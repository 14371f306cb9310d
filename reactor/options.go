// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultMaxEvents is the default number of events retrieved per wait call.
const DefaultMaxEvents = 128

// queueOptions holds configuration options for EventQueue creation.
type queueOptions struct {
	logger        *logiface.Logger[logiface.Event]
	errorLogRates map[time.Duration]int
	maxEvents     int
	metrics       bool
}

// Option configures an EventQueue instance.
type Option interface {
	applyQueue(*queueOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyQueueFunc func(*queueOptions) error
}

func (o *optionImpl) applyQueue(opts *queueOptions) error {
	return o.applyQueueFunc(opts)
}

// WithLogger sets the logger. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *queueOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMaxEvents sets how many events a single wait call may retrieve.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *queueOptions) error {
		if n <= 0 {
			return errors.New("reactor: max events must be positive")
		}
		opts.maxEvents = n
		return nil
	}}
}

// WithErrorLogRates bounds how often recurring failures (e.g. of the wait
// call, or of arming a handle) are logged, per category, e.g.
// map[time.Duration]int{time.Minute: 10}. A nil map disables the limit.
func WithErrorLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *queueOptions) error {
		opts.errorLogRates = rates
		return nil
	}}
}

// WithMetrics enables counters, readable via EventQueue.Metrics.
func WithMetrics(enabled bool) Option {
	return &optionImpl{func(opts *queueOptions) error {
		opts.metrics = enabled
		return nil
	}}
}

// resolveOptions applies Option instances to queueOptions.
func resolveOptions(opts []Option) (*queueOptions, error) {
	cfg := &queueOptions{
		maxEvents: DefaultMaxEvents,
		errorLogRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyQueue(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
