package retry_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	rerrors "github.com/swatzat-oss/cs2-dumper/internal/errors"
	"github.com/swatzat-oss/cs2-dumper/internal/retry"
)

// Example waits for a module that is mapped on the third poll.
func Example() {
	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
	}

	polls := 0
	err := retry.Do(context.Background(), cfg, func() error {
		polls++
		if polls < 3 {
			return &rerrors.ResolveError{Kind: rerrors.ModuleNotLoaded, Module: "client.dll"}
		}
		return nil
	}, rerrors.IsTransient)

	fmt.Println(polls, err)
	// Output: 3 <nil>
}

// Example_permanent shows that table errors end the wait immediately.
func Example_permanent() {
	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: time.Millisecond,
	}

	err := retry.Do(context.Background(), cfg, func() error {
		return &rerrors.ResolveError{Kind: rerrors.UnknownInterface, Module: "client.dll", Interface: "NoSuchInterface999"}
	}, rerrors.IsTransient)

	fmt.Println(err)
	// Output: unknown interface: client.dll!NoSuchInterface999
}

// Example_withTimeout bounds the wait with a context deadline.
func Example_withTimeout() {
	cfg := retry.Config{
		MaxRetries:     5,
		InitialBackoff: 100 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := retry.Do(ctx, cfg, func() error {
		return rerrors.ErrModuleNotLoaded
	}, nil)

	fmt.Println(errors.Is(err, context.DeadlineExceeded))
	// Output: true
}
