package core

import "fmt"

// JobHandle identifies a registered job family.
//
// The upper 32 bits hold the registration generation, the lower 32 bits the
// registry slot. Generations never repeat within a manager, so a handle that
// outlived its family can never alias a family registered later in the same
// slot. Handles are only meaningful for equality.
type JobHandle uint64

// InvalidJobHandle is never returned by a successful Register.
const InvalidJobHandle JobHandle = 0

const slotMask = 0xFFFFFFFF

// NewJobHandle packs a slot index and a generation into a handle.
func NewJobHandle(slot uint32, generation uint32) JobHandle {
	return JobHandle(uint64(generation)<<32 | uint64(slot))
}

// Slot returns the registry slot encoded in the handle.
func (h JobHandle) Slot() uint32 {
	return uint32(uint64(h) & slotMask)
}

// Generation returns the registration generation encoded in the handle.
func (h JobHandle) Generation() uint32 {
	return uint32(uint64(h) >> 32)
}

// IsValid reports whether the handle could have come from Register.
// It does not check that the family is still live.
func (h JobHandle) IsValid() bool {
	return h.Generation() != 0
}

func (h JobHandle) String() string {
	if !h.IsValid() {
		return "job#invalid"
	}
	return fmt.Sprintf("job#%d@%d", h.Generation(), h.Slot())
}
