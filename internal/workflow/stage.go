package workflow

// Stage is one state of the submission workflow.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageIntake     Stage = "intake"
	StageDispatched Stage = "dispatched"
	StageAnalysing  Stage = "analysing"
	StageReview     Stage = "review"
	StageDetails    Stage = "details"
	StagePreview    Stage = "preview"
	StageCommitting Stage = "committing"
	StageDone       Stage = "done"

	StageIntakeError   Stage = "intake_error"
	StageAnalysisError Stage = "analysis_error"
)

// transitions lists the permitted forward and backward moves. Cancel is not
// listed; it resets to idle from any stage.
var transitions = map[Stage][]Stage{
	StageIdle:          {StageIntake},
	StageIntake:        {StageDispatched, StageIntakeError},
	StageDispatched:    {StageAnalysing, StageAnalysisError},
	StageAnalysing:     {StageReview, StageAnalysisError},
	StageReview:        {StageDetails, StageIntake},
	StageDetails:       {StagePreview, StageReview},
	StagePreview:       {StageCommitting, StageDetails},
	StageCommitting:    {StageDone, StagePreview},
	StageIntakeError:   {StageIntake},
	StageAnalysisError: {StageIntake},
}

// Terminal reports whether the workflow has run its course.
func (s Stage) Terminal() bool {
	return s == StageDone
}

func canTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
