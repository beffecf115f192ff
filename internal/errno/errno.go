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

// Package errno defines the POSIX-style error codes that the scheduler,
// futex, and ext4 subsystems surface to their callers (§6.5 of the design).
// Every externally visible error from those subsystems wraps one of these
// sentinels so callers can compare with errors.Is instead of parsing strings.
package errno

import "errors"

// Errno is a POSIX-style error code. It implements the error interface
// directly so it can be returned (and wrapped) without an adapter type.
type Errno string

func (e Errno) Error() string { return string(e) }

// The full externally visible error set from §6.5. Subsystems return one of
// these, wrapped with context via fmt.Errorf("...: %w", ...); callers use
// errors.Is(err, errno.ENOENT) etc.
const (
	EINVAL   Errno = "EINVAL"   // invalid argument
	ENOENT   Errno = "ENOENT"   // no such entry
	EEXIST   Errno = "EEXIST"   // entry already exists
	EISDIR   Errno = "EISDIR"   // is a directory
	ENOTDIR  Errno = "ENOTDIR"  // not a directory
	ENOSPC   Errno = "ENOSPC"   // no space left
	ENOSYS   Errno = "ENOSYS"   // not implemented
	ENODATA  Errno = "ENODATA"  // no data available (e.g. xattr absent)
	ENOTEMPTY Errno = "ENOTEMPTY" // directory not empty
	EAGAIN   Errno = "EAGAIN"   // try again
	ETIMEDOUT Errno = "ETIMEDOUT" // timed out
	EINTR    Errno = "EINTR"    // interrupted
	EBADF    Errno = "EBADF"    // bad file descriptor
	ENOTCONN Errno = "ENOTCONN" // not connected
	EPERM    Errno = "EPERM"    // operation not permitted
	ESRCH    Errno = "ESRCH"    // no such process
	EFAULT   Errno = "EFAULT"   // bad address
	ENOMEM   Errno = "ENOMEM"   // out of memory
)

// Is reports whether err ultimately wraps target. It exists so callers that
// don't want to import "errors" directly for this one check can still get
// the same behavior; it is a thin pass-through to errors.Is.
func Is(err error, target Errno) bool {
	return errors.Is(err, target)
}
