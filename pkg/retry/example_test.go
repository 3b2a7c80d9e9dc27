package retry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/energia/backend/pkg/logger"
	"github.com/wonny/energia/backend/pkg/retry"
)

// Example demonstrates retrying a flaky call
func Example() {
	cfg := retry.Config{MaxRetries: 3, InitialDelay: time.Millisecond, Multiplier: 2}

	calls := 0
	rows, err := retry.Do(context.Background(), cfg, logger.Nop(), "fetch Gene", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("503 service unavailable")
		}
		return 24, nil
	})

	fmt.Println(rows, err, calls)
	// Output: 24 <nil> 3
}

// ExamplePermanent shows that a permanent error stops retrying
func ExamplePermanent() {
	cfg := retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond}

	calls := 0
	err := retry.WithBackoff(context.Background(), cfg, logger.Nop(), "fetch Gene", func() error {
		calls++
		return retry.Permanent(errors.New("400 bad request"))
	})

	fmt.Println(err, calls)
	// Output: 400 bad request 1
}
