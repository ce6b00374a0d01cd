/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package utils

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/hyperledger-labs/license-ledger/platform/common/services/logging"
)

// RetryRunner receives a function that potentially fails and retries according to the specified strategy
type RetryRunner interface {
	Run(func() error) error
	RunWithErrors(runner func() (bool, error)) error
	RunWithContext(ctx context.Context, runner func() error) error
}

var ErrMaxRetriesExceeded = errors.New("maximum number of retries exceeded")

const Infinitely = -1

type retryRunner struct {
	delay      time.Duration
	expBackoff bool
	maxTimes   int

	probabilistic bool
	interval      int64
	logger        logging.Logger
}

func NewRetryRunner(maxTimes int, delay time.Duration, expBackoff bool) *retryRunner {
	return &retryRunner{
		delay:      delay,
		expBackoff: expBackoff,
		maxTimes:   maxTimes,
		logger:     logging.MustGetLogger("retry-runner"),
	}
}

// NewProbabilisticRetryRunner returns a new runner that sets delay to time.Duration(rand.Int63n(f.interval)+1) * time.Millisecond
func NewProbabilisticRetryRunner(maxTimes int, interval int64, expBackoff bool) *retryRunner {
	return &retryRunner{
		delay:         0,
		expBackoff:    expBackoff,
		maxTimes:      maxTimes,
		probabilistic: true,
		interval:      interval,
		logger:        logging.MustGetLogger("retry-runner"),
	}
}

func (f *retryRunner) nextDelay(current time.Duration) time.Duration {
	if f.probabilistic && current == 0 {
		current = time.Duration(rand.Int63n(f.interval)+1) * time.Millisecond
	}
	if f.expBackoff {
		current = 2 * current
	}
	return current
}

func (f *retryRunner) Run(runner func() error) error {
	return f.RunWithErrors(func() (bool, error) {
		err := runner()
		return err == nil, err
	})
}

// RunWithErrors will retry until runner() returns true or until it returns maxTimes false.
// If it returns true, then the error or nil will be returned.
// If it returns maxTimes false, then it will always return an error: either a join of all errors it encountered or a ErrMaxRetriesExceeded.
func (f *retryRunner) RunWithErrors(runner func() (bool, error)) error {
	return f.run(context.Background(), runner)
}

// RunWithContext behaves like Run but gives up as soon as the passed context is done.
func (f *retryRunner) RunWithContext(ctx context.Context, runner func() error) error {
	return f.run(ctx, func() (bool, error) {
		err := runner()
		return err == nil, err
	})
}

func (f *retryRunner) run(ctx context.Context, runner func() (bool, error)) error {
	errs := make([]error, 0)
	delay := f.delay
	for i := 0; f.maxTimes < 0 || i < f.maxTimes; i++ {
		terminate, err := runner()
		if terminate {
			return err
		}
		if err != nil {
			errs = append(errs, err)
		}
		if f.maxTimes >= 0 && i == f.maxTimes-1 {
			break
		}
		delay = f.nextDelay(delay)
		f.logger.Debugf("Will retry iteration [%d] after delay [%s]. %d errors returned so far", i+1, delay, len(errs))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(append(errs, ctx.Err())...)
		case <-timer.C:
		}
	}
	if len(errs) == 0 {
		return ErrMaxRetriesExceeded
	}
	return errors.Join(errs...)
}
