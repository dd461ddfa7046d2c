package threadmanager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/Swind/go-thread-manager/core"
)

func TestGlobalManager_Lifecycle(t *testing.T) {
	// Given: An initialized global manager
	InitGlobalManager(&ManagerConfig{Logger: core.NewNoOpLogger(), MaxFamilies: 2})
	defer ShutdownGlobalManager()

	// Repeated init keeps the first instance
	first := GetGlobalManager()
	InitGlobalManager(nil)
	if GetGlobalManager() != first {
		t.Fatal("InitGlobalManager replaced an existing manager")
	}

	// When: A family is registered through the package helper
	var count atomic.Int32
	h, err := Register(func(context.Context, any) error {
		count.Add(1)
		return nil
	}, "global")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_ = first.Post(h, nil, 1)
	_ = first.Post(h, nil, 2)

	// Then: Shutdown drains it and later lookups panic until re-init
	ShutdownGlobalManager()
	if got := count.Load(); got != 2 {
		t.Fatalf("dispatched %d jobs, want 2", got)
	}
	if err := first.Post(h, nil, 3); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("Post after shutdown error = %v, want ErrInvalidHandle", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("GetGlobalManager after shutdown should panic")
		}
	}()
	GetGlobalManager()
}

func TestGlobalManager_ShutdownWithoutInit(t *testing.T) {
	ShutdownGlobalManager()
	ShutdownGlobalManager()
}
