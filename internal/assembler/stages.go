package assembler

import (
	"encoding/json"

	"tracepayload/internal/models"
)

// stages tracks the ordered pairs seen so far for each stage.
type stages map[models.Stage][]models.StagePair

func newStages() stages {
	return stages{
		models.StageTransaction: {},
		models.StageDiscounts:   {},
	}
}

func (s stages) empty(stage models.Stage) bool {
	return len(s[stage]) == 0
}

// append opens a new occurrence of stage.
func (s stages) append(stage models.Stage, pair models.StagePair) {
	s[stage] = append(s[stage], pair)
}

// patchLast sets the response of the most recent occurrence of stage,
// replacing any earlier response. It reports false when stage has no pairs.
func (s stages) patchLast(stage models.Stage, response json.RawMessage) bool {
	pairs := s[stage]
	if len(pairs) == 0 {
		return false
	}
	pairs[len(pairs)-1].Response = response
	return true
}

func (s stages) pairs(stage models.Stage) []models.StagePair {
	if p := s[stage]; p != nil {
		return p
	}
	return []models.StagePair{}
}
