package pipeline

// Stage identifies a coarse-grained phase of a grading run.
type Stage string

const (
	StageExtracting Stage = "extracting"
	StageParsing    Stage = "parsing"
	StageGrading    Stage = "grading"
	StageComplete   Stage = "complete"
)

// Event is one progress notification. During StageParsing, Page/Total carry
// the per-page counter.
type Event struct {
	Stage Stage `json:"stage"`
	Page  int   `json:"page,omitempty"`
	Total int   `json:"total,omitempty"`
}

// emit sends an event without ever blocking the pipeline. A slow or absent
// consumer drops events; progress is advisory, results are not.
func emit(ch chan<- Event, e Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- e:
	default:
	}
}
