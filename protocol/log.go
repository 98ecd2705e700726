package protocol

import (
	"github.com/epic-project/epicd/logs"
	"github.com/epic-project/epicd/util/panics"
)

var log = logs.NewBackend(nil).Logger("PROT", logs.LevelInfo)
var spawn = panics.GoroutineWrapperFunc(log)
