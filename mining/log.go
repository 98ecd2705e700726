// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import "github.com/epic-project/epicd/logs"

var log = logs.NewBackend(nil).Logger("MINR", logs.LevelInfo)
