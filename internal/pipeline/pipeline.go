// Package pipeline models the fixed notebook production pipeline and the
// forward-only progress tracker that moves quantities through it.
package pipeline

// Stage identifies one step of the production pipeline.
type Stage string

const (
	StageDesigning    Stage = "designing"
	StageProcurement  Stage = "procurement"
	StagePrinting     Stage = "printing"
	StageCutting      Stage = "cutting"
	StageBinding      Stage = "binding"
	StageQualityCheck Stage = "quality_check"
	StagePacking      Stage = "packing"
)

// Stages lists the pipeline in production order. The order is fixed:
// every batch and job card walks these stages front to back.
var Stages = []Stage{
	StageDesigning,
	StageProcurement,
	StagePrinting,
	StageCutting,
	StageBinding,
	StageQualityCheck,
	StagePacking,
}

// Index returns the position of a stage in the pipeline.
func Index(s Stage) (int, bool) {
	for i, stage := range Stages {
		if stage == s {
			return i, true
		}
	}
	return 0, false
}

// Valid reports whether s names a pipeline stage.
func Valid(s Stage) bool {
	_, ok := Index(s)
	return ok
}
