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

package sched

// Fixed-point constants for CFS vruntime arithmetic (§4.1 "CFS vruntime
// arithmetic").
const (
	SchedFixedpointShift = 10
	SchedFixedpointScale = 1 << SchedFixedpointShift // 1024
	NiceZeroWeight       = SchedFixedpointScale

	// WMULTShift is the right-shift applied after the reciprocal multiply in
	// calcDeltaFair.
	WMULTShift = 32
	// WMULTConst is the dividend used to derive invWeight from a task's
	// load weight.
	WMULTConst = ^uint32(0)
)

// niceToWeight is the standard nice(-20..19)-to-load-weight table: each step
// multiplies/divides runtime share by roughly 1.25, so a nice+1 task gets
// about 80% of the CPU time of a nice-0 neighbor under CFS.
var niceToWeight = [40]uint64{
	/* -20 */ 88761, 71755, 56483, 46273, 36291,
	/* -15 */ 29154, 23254, 18705, 14949, 11916,
	/* -10 */ 9548, 7620, 6100, 4904, 3906,
	/* -5  */ 3121, 2501, 1991, 1586, 1277,
	/* 0   */ 1024, 820, 655, 526, 423,
	/* 5   */ 335, 272, 215, 172, 137,
	/* 10  */ 110, 87, 70, 56, 45,
	/* 15  */ 36, 29, 23, 18, 15,
}

// WeightForNice maps a nice value in [-20, 19] to its CFS load weight,
// scaled up by SchedFixedpointScale (so nice 0 is 1024 * 1024), which is the
// form scaleLoadDown expects. Out-of-range values clamp to the table's edges.
func WeightForNice(nice int) uint64 {
	idx := nice + 20
	if idx < 0 {
		idx = 0
	}
	if idx > 39 {
		idx = 39
	}
	return niceToWeight[idx] << SchedFixedpointShift
}

// scaleLoadDown shifts a load weight down by SchedFixedpointShift, floored at
// 2 so invWeight's division never sees a zero denominator (§4.1).
func scaleLoadDown(weight uint64) uint64 {
	v := weight >> SchedFixedpointShift
	if v < 2 {
		v = 2
	}
	return v
}

// computeInvWeight derives the reciprocal-multiplication constant for
// weight, lazily recomputed whenever a sched entity's weight changes.
func computeInvWeight(weight uint64) uint64 {
	return uint64(WMULTConst) / scaleLoadDown(weight)
}

// calcDeltaFair converts deltaExec nanoseconds of runtime on a task of the
// given invWeight into a vruntime delta, via reciprocal multiplication
// instead of a division per tick (§4.1: "vruntime += (delta_exec *
// NICE_0_WEIGHT * inv_weight) >> WMULT_SHIFT").
func calcDeltaFair(deltaExec uint64, invWeight uint64) uint64 {
	return (deltaExec * NiceZeroWeight * invWeight) >> WMULTShift
}
