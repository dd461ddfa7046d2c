package main

import (
	"context"
	"fmt"
	"time"

	threadmanager "github.com/Swind/go-thread-manager"
)

func main() {
	// 1. Initialize the global manager
	threadmanager.InitGlobalManager(nil)
	defer threadmanager.ShutdownGlobalManager()

	fmt.Println("=== Basic Family Example ===")

	// 2. Register a job family
	// The family owns a dedicated goroutine. Jobs posted to it are sequential.
	h, err := threadmanager.Register(func(ctx context.Context, payload any) error {
		fmt.Printf("Job %v running on the family goroutine\n", payload)
		time.Sleep(100 * time.Millisecond) // Simulate work
		return nil
	}, "basic")
	if err != nil {
		panic(err)
	}

	m := threadmanager.GetGlobalManager()

	// 3. Post a sequence of jobs
	for i := 1; i <= 3; i++ {
		_ = m.Post(h, i, uint64(i))
	}

	// 4. Wait for them
	if err := m.Flush(h, true); err != nil {
		panic(err)
	}

	fmt.Println("=== Example Finished ===")
}
