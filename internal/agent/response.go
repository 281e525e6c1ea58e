package agent

// Response is what a run hands back to the CLI. FinalAnswer is always
// populated, even when the run degraded; Incomplete tells the two apart.
type Response struct {
	FinalAnswer string
	ToolsUsed   []string
	Iterations  int
	Trace       []string
	Incomplete  bool
}
