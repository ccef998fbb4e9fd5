package domain

// Stage is a search engagement's position in its lifecycle.
type Stage string

const (
	StageAwaitingAgreements Stage = "AwaitingAgreements"
	StageSearching          Stage = "Searching"
	StageUnderContract      Stage = "UnderContract"
	StageClosed             Stage = "Closed"
	StageMovedIn            Stage = "MovedIn"
	StagePaused             Stage = "Paused"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageAwaitingAgreements,
	StageSearching,
	StageUnderContract,
	StageClosed,
	StageMovedIn,
	StagePaused,
}

var stageTransitions = map[Stage][]Stage{
	StageAwaitingAgreements: {StageSearching},
	StageSearching:          {StageUnderContract, StagePaused},
	StageUnderContract:      {StageClosed, StageSearching},
	StageClosed:             {StageMovedIn, StageSearching},
	StagePaused:             {StageSearching},
	StageMovedIn:            {},
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// Label returns a human-readable label.
func (s Stage) Label() string {
	switch s {
	case StageAwaitingAgreements:
		return "Awaiting agreements"
	case StageSearching:
		return "Searching"
	case StageUnderContract:
		return "Under contract"
	case StageClosed:
		return "Closed"
	case StageMovedIn:
		return "Moved in"
	case StagePaused:
		return "Paused"
	default:
		return string(s)
	}
}

// NextStages returns the stages reachable from s in one move.
func (s Stage) NextStages() []Stage {
	return append([]Stage(nil), stageTransitions[s]...)
}

// CanTransitionTo reports whether the table allows s -> to.
func (s Stage) CanTransitionTo(to Stage) bool {
	for _, next := range stageTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStage validates a stage name.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if !s.IsValid() {
		return "", Validation("unknown stage %q", v)
	}
	return s, nil
}

func stageNames(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
