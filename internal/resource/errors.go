// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package resource

import "errors"

// ErrDiffAlgorithm marks an internal invariant violation in Calculate: after
// reconciling every key of current against desired, current should always
// be empty. Seeing this error means the diff algorithm itself has a bug,
// not that the caller supplied a bad configuration.
var ErrDiffAlgorithm = errors.New("diff algorithm error")
