// Package threadmanager runs job families, each on its own dedicated goroutine.
//
// A job family is a job function plus a queue. Callers register a family once,
// then post payloads to it; every payload is handed to the job function on the
// family goroutine, one at a time and in posting order. Families never share a
// goroutine, so a blocking job in one family cannot delay another.
//
// # Quick Start
//
// Initialize the global manager at application startup:
//
//	threadmanager.InitGlobalManager(nil)
//	defer threadmanager.ShutdownGlobalManager()
//
// Register a family and post jobs to it:
//
//	h, err := threadmanager.Register(func(ctx context.Context, payload any) error {
//		return decode(payload.(*Frame))
//	}, "decoder")
//	m := threadmanager.GetGlobalManager()
//	m.Post(h, frame, requestID)
//
// # Key Concepts
//
// JobHandle: returned by Register. It packs the registry slot and a
// generation number, so a handle kept after Unregister never reaches the
// family that later reuses the slot; it fails with ErrInvalidHandle.
//
// Flush: blocks until every job posted before the call has run. With
// forceFlush the family then resumes normally; without it, jobs posted
// afterwards are discarded until Resume or Unregister.
//
// RemoveJob: cancels queued jobs by payload. Pointers match by identity.
//
// Family: a typed wrapper, RegisterFamily[P], for families whose payloads
// share one type.
//
// # Example
//
//	import (
//		"context"
//		threadmanager "github.com/Swind/go-thread-manager"
//	)
//
//	func main() {
//		m := threadmanager.NewThreadManager(nil)
//		defer m.Close()
//
//		frames, _ := threadmanager.RegisterFamily(m, "frames",
//			func(ctx context.Context, n int) error {
//				println("frame", n)
//				return nil
//			})
//
//		frames.Post(1, 1)
//		frames.Post(2, 2)
//		frames.Flush(true)
//	}
package threadmanager
