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

package ext4

// extent maps a contiguous run of logical blocks to a contiguous run of
// physical blocks (§3.3 "Extent tree").
type extent struct {
	LogicalStart  uint64
	PhysicalStart uint64
	Length        uint64
}

// extentTree is a simple sorted list of non-overlapping extents. Kept as a
// slice rather than a balanced tree: files in this simulator are small
// enough that linear scan is not a bottleneck, and the spec's invariant
// (every logical block maps to at most one extent) is easy to audit in a
// flat structure.
type extentTree struct {
	extents []extent
}

func newExtentTree() *extentTree {
	return &extentTree{}
}

// lookup returns the physical block backing logicalBlock, or ok=false if the
// block is a hole (§4.2 "hole blocks ... returned as zero-filled").
func (t *extentTree) lookup(logicalBlock uint64) (physical uint64, ok bool) {
	for _, e := range t.extents {
		if logicalBlock >= e.LogicalStart && logicalBlock < e.LogicalStart+e.Length {
			return e.PhysicalStart + (logicalBlock - e.LogicalStart), true
		}
	}
	return 0, false
}

// numLogicalBlocks returns one past the highest logical block currently
// mapped, i.e. how many blocks would need to exist for the file to have no
// further holes at its current extent coverage.
func (t *extentTree) numLogicalBlocks() uint64 {
	var max uint64
	for _, e := range t.extents {
		if end := e.LogicalStart + e.Length; end > max {
			max = end
		}
	}
	return max
}

func (t *extentTree) totalBlocks() uint64 {
	var n uint64
	for _, e := range t.extents {
		n += e.Length
	}
	return n
}

// append records a newly allocated physical run as covering the next
// contiguous range of logical blocks starting at numLogicalBlocks().
func (t *extentTree) append(physicalStart, length uint64) {
	if length == 0 {
		return
	}
	logicalStart := t.numLogicalBlocks()
	if n := len(t.extents); n > 0 {
		last := &t.extents[n-1]
		if last.PhysicalStart+last.Length == physicalStart && last.LogicalStart+last.Length == logicalStart {
			last.Length += length
			return
		}
	}
	t.extents = append(t.extents, extent{LogicalStart: logicalStart, PhysicalStart: physicalStart, Length: length})
}
