package watcher

// ChangeAnalysis says whether a debounced change warrants recomputation
type ChangeAnalysis struct {
	Recompute bool
	Reason    string
}

// AnalyzeChanges decides what to do about a change to the declaration file
func AnalyzeChanges(event ChangeEvent) ChangeAnalysis {
	switch event.Type {
	case ChangeTypeRemove:
		// Keep the last result; the file may come back
		return ChangeAnalysis{Recompute: false, Reason: "declaration file removed"}
	case ChangeTypeCreate:
		return ChangeAnalysis{Recompute: true, Reason: "declaration file created"}
	default:
		return ChangeAnalysis{Recompute: true, Reason: "declaration file changed"}
	}
}
