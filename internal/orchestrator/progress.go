package orchestrator

// Phase identifies which stage of the pipeline a ProgressUpdate describes.
type Phase int

const (
	Ingestion Phase = iota
	Resolution
	Acquisition
	Enrichment
	Finalization
)

func (p Phase) String() string {
	switch p {
	case Ingestion:
		return "ingestion"
	case Resolution:
		return "resolution"
	case Acquisition:
		return "acquisition"
	case Enrichment:
		return "enrichment"
	case Finalization:
		return "finalization"
	default:
		return "unknown"
	}
}

// ProgressUpdate represents a single progress event during a run, mirroring
// the teacher's tasks.ProgressUpdate shape: enough for a CLI progress bar or
// a UI layer to render without coupling either to the orchestrator's internals.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	Data    any
}

// sendProgress delivers update without blocking the run when the caller
// isn't reading fast enough, or at all. A nil channel is a valid "no one is
// listening" case.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func ingestionUpdate(step, total int, message string) ProgressUpdate {
	return ProgressUpdate{Phase: Ingestion, Step: step, Total: total, Message: message}
}

func resolutionUpdate(step, total int, message string) ProgressUpdate {
	return ProgressUpdate{Phase: Resolution, Step: step, Total: total, Message: message}
}
