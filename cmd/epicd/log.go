package main

import (
	"github.com/epic-project/epicd/logs"
	"github.com/epic-project/epicd/util/panics"
)

var log = logs.NewBackend(nil).Logger("EPCD", logs.LevelInfo)
var spawn = panics.GoroutineWrapperFunc(log)
