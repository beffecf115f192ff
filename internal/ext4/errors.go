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

import (
	"fmt"

	"github.com/kernelsim/coresys/internal/errno"
)

var (
	errENOENT    = fmt.Errorf("no such directory entry: %w", errno.ENOENT)
	errEEXIST    = fmt.Errorf("directory entry already exists: %w", errno.EEXIST)
	errEISDIR    = fmt.Errorf("is a directory: %w", errno.EISDIR)
	errENOTDIR   = fmt.Errorf("not a directory: %w", errno.ENOTDIR)
	errENOTEMPTY = fmt.Errorf("directory not empty: %w", errno.ENOTEMPTY)
	errEINVAL    = fmt.Errorf("invalid argument: %w", errno.EINVAL)
	errENOSPC    = fmt.Errorf("no space left on device: %w", errno.ENOSPC)
	errENODATA   = fmt.Errorf("no such attribute: %w", errno.ENODATA)
)
