package main

import (
	"fmt"
	"io"
	"time"

	"modfed/internal/buildpipeline"
)

func printStageTimings(out io.Writer, timings buildpipeline.Timings) {
	if out == nil {
		return
	}
	var printErr error
	if timings.Has(buildpipeline.StageEvaluate) {
		_, printErr = fmt.Fprintf(out, "evaluate %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageEvaluate)))
		if printErr != nil {
			panic(printErr)
		}
	}
	if timings.Has(buildpipeline.StageBundle) {
		_, printErr = fmt.Fprintf(out, "bundle %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageBundle)))
		if printErr != nil {
			panic(printErr)
		}
	}
	if timings.Has(buildpipeline.StageCommit) {
		_, printErr = fmt.Fprintf(out, "commit %.1f ms\n", toMillis(timings.Duration(buildpipeline.StageCommit)))
		if printErr != nil {
			panic(printErr)
		}
	}
	if timings.Has(buildpipeline.StagePublish) {
		_, printErr = fmt.Fprintf(out, "publish %.1f ms\n", toMillis(timings.Duration(buildpipeline.StagePublish)))
		if printErr != nil {
			panic(printErr)
		}
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
