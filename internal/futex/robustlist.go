// Copyright 2026 The CoreSys Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package futex

// Robust-list futex word bit layout (shared with golang.org/x/sys/unix's
// linux robust_list constants): low bits hold the owning TID, with WAITERS
// and OWNER_DIED flags in the top two bits.
const (
	robustTIDMask    = 0x3fffffff
	robustWaitersBit = 0x40000000
	robustOwnerDied  = 0x80000000

	// maxRobustListEntries bounds the traversal against a corrupted or
	// cyclic list (§4.3 "bounded iteration with cycle limit").
	maxRobustListEntries = 1 << 16
)

// RobustListEntry is one node the exiting thread must fix up.
type RobustListEntry struct {
	FutexWordAddr uint64
}

// ExitRobustList runs the robust-list-at-thread-exit cleanup for tid over
// entries (§4.3 "Robust list at thread exit"). pending, if non-nil, is
// processed last, matching the kernel's "pending-slot pushed last" rule.
// addressSpace identifies the exiting thread's process for private-key
// derivation of each futex word.
func (t *Table) ExitRobustList(addressSpace uint64, tid uint32, entries []RobustListEntry, pending *RobustListEntry) error {
	if pending != nil {
		entries = append(append([]RobustListEntry(nil), entries...), *pending)
	}
	if len(entries) > maxRobustListEntries {
		entries = entries[:maxRobustListEntries]
	}

	for _, e := range entries {
		if err := t.fixupRobustEntry(addressSpace, tid, e); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) fixupRobustEntry(addressSpace uint64, tid uint32, e RobustListEntry) error {
	for {
		old, err := t.mem.ReadU32(e.FutexWordAddr)
		if err != nil {
			return err
		}
		if old&robustTIDMask != tid {
			return nil // not owned by this thread; nothing to fix up
		}
		newVal := (old & robustWaitersBit) | robustOwnerDied
		_, swapped, err := t.mem.CompareAndSwapU32(e.FutexWordAddr, old, newVal)
		if err != nil {
			return err
		}
		if !swapped {
			continue
		}
		if old&robustWaitersBit != 0 {
			entryKey := Key{Kind: KeyPrivate, AddressSpace: addressSpace, Base: e.FutexWordAddr, PageOffset: 0}
			if _, err := t.Wake(entryKey, 1, ^uint32(0)); err != nil {
				return err
			}
		}
		return nil
	}
}
