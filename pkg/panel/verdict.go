package panel

// Verdict is the tri-state result of classifying a panel candidate at a
// point in time. It is recomputed on each check, never cached on the
// element: the host can swap a container's content between checks.
type Verdict string

const (
	// VerdictMatch means the candidate is the target panel.
	VerdictMatch Verdict = "match"

	// VerdictNoMatch means the candidate is some other panel.
	VerdictNoMatch Verdict = "no-match"

	// VerdictIndeterminate means not enough of the candidate has rendered
	// to decide. It is reserved strictly for partially rendered DOM.
	VerdictIndeterminate Verdict = "indeterminate"
)
