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

// Package futex implements address-keyed wait queues with timeouts,
// requeue, atomic op-and-wake, and robust-list-on-exit cleanup (C4, §4.3).
package futex

import (
	"fmt"

	"github.com/kernelsim/coresys/internal/errno"
)

// PageSize is the page granularity used for key derivation.
const PageSize = 4096

// KeyKind discriminates the four key variants of §4.3's get_futex_key.
type KeyKind int

const (
	KeyPrivate KeyKind = iota
	KeySharedFile
	KeySharedAnon
	KeyPrivateAnonShared
)

// Key uniquely identifies a futex bucket. Only the fields relevant to Kind
// are populated; the struct is comparable so it can be a map key directly.
type Key struct {
	Kind KeyKind

	// KeyPrivate
	AddressSpace uint64
	Base         uint64
	PageOffset   uint32

	// KeySharedFile
	Dev, Ino uint64
	FileOff  uint64

	// KeySharedAnon
	SharedAnonID uint64
	AnonPageIdx  uint64

	// KeyPrivateAnonShared
	VPN uint64
}

// VMA describes the mapping containing a shared uaddr, enough information
// for get_futex_key to pick the right SharedKey variant (§4.3).
type VMA struct {
	IsFile        bool
	Dev, Ino      uint64
	PageOffset    uint64 // vma_page_offset
	HasSharedAnon bool
	SharedAnonID  uint64
	AddressSpace  uint64
}

// VMAResolver looks up the VMA containing uaddr. Required only for shared
// keys; private keys never consult it.
type VMAResolver interface {
	Resolve(uaddr uint64) (VMA, error)
}

// GetFutexKey derives the bucket key for uaddr (§4.3 "get_futex_key").
func GetFutexKey(addressSpace uint64, uaddr uint64, shared bool, resolver VMAResolver) (Key, error) {
	if uaddr%4 != 0 {
		return Key{}, fmt.Errorf("unaligned futex address 0x%x: %w", uaddr, errno.EINVAL)
	}
	pageOffset := uint32(uaddr % PageSize)
	base := uaddr - uint64(pageOffset)

	if !shared {
		return Key{Kind: KeyPrivate, AddressSpace: addressSpace, Base: base, PageOffset: pageOffset}, nil
	}

	vma, err := resolver.Resolve(uaddr)
	if err != nil {
		return Key{}, err
	}
	vpn := uaddr / PageSize

	if vma.IsFile {
		pageIndexInVMA := vpn - vma.PageOffset/PageSize
		return Key{
			Kind:    KeySharedFile,
			Dev:     vma.Dev,
			Ino:     vma.Ino,
			FileOff: vma.PageOffset + pageIndexInVMA*PageSize,
		}, nil
	}
	if vma.HasSharedAnon {
		pageIndexInVMA := vpn - vma.PageOffset/PageSize
		return Key{Kind: KeySharedAnon, SharedAnonID: vma.SharedAnonID, AnonPageIdx: pageIndexInVMA}, nil
	}
	// Anonymous VMA with no shared-anon id: threads sharing an address space
	// must still resolve to the same key, so fall back to (as_id, vpn).
	return Key{Kind: KeyPrivateAnonShared, AddressSpace: vma.AddressSpace, VPN: vpn}, nil
}
