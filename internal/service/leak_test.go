package service

import "go.uber.org/goleak"

// ignoreBackgroundWorkers genai 依赖链中的 opencensus 在 init 时启动常驻 goroutine
var ignoreBackgroundWorkers = []goleak.Option{
	goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
}
