package pipeline

// Lifecycle event names emitted during a streaming run, in order: status
// (start), parsed, competitors, hypotheses, status (search), one
// hypothesis_result per completed hypothesis in completion order,
// quality_filter (only when the gate drops findings), executive_summary
// (optional), final.
const (
	EventStatus           = "status"
	EventParsed           = "parsed"
	EventCompetitors      = "competitors"
	EventHypotheses       = "hypotheses"
	EventHypothesisResult = "hypothesis_result"
	EventQualityFilter    = "quality_filter"
	EventExecutiveSummary = "executive_summary"
	EventFinal            = "final"
)

// Event is one streamed lifecycle notification.
type Event struct {
	Name string
	Data any
}

// EmitFunc receives lifecycle events. Called serially; implementations
// must not block for long since emission happens on the run's critical
// path.
type EmitFunc func(Event)
