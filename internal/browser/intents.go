package browser

// Intent describes the control that performs an action, independent of
// the page's markup. Matching is case-insensitive substring matching
// over a clickable element's accessible label, visible text and tooltip.
type Intent struct {
	Action   string   `json:"action"`
	Labels   []string `json:"labels,omitempty"`
	Texts    []string `json:"texts,omitempty"`
	Tooltips []string `json:"tooltips,omitempty"`
	// Exclude rejects elements whose label, text or tooltip contains any
	// of these.
	Exclude []string `json:"exclude,omitempty"`
}

// Ordered descriptor lists for each call action. Callers try them in
// order and stop at the first control that can be activated.
var (
	MuteIntents = []Intent{
		{Action: "mute microphone", Labels: []string{"turn off microphone"}},
		{Action: "mute microphone", Tooltips: []string{"turn off microphone", "turn off mic"}},
		{Action: "mute microphone", Labels: []string{"microphone"}, Exclude: []string{"turn on", "unmute"}},
	}

	CameraOffIntents = []Intent{
		{Action: "turn off camera", Labels: []string{"turn off camera"}},
		{Action: "turn off camera", Tooltips: []string{"turn off camera"}},
		{Action: "turn off camera", Labels: []string{"camera"}, Exclude: []string{"turn on"}},
	}

	JoinIntents = []Intent{
		{Action: "join call", Texts: []string{"join now"}},
		{Action: "join call", Texts: []string{"ask to join"}},
		{Action: "join call", Labels: []string{"join"}, Exclude: []string{"other ways"}},
		{Action: "join call", Texts: []string{"join"}, Exclude: []string{"other ways"}},
	}

	LeaveIntents = []Intent{
		{Action: "leave call", Labels: []string{"leave call"}},
		{Action: "leave call", Labels: []string{"leave"}},
		{Action: "leave call", Texts: []string{"leave call", "leave"}},
		{Action: "leave call", Labels: []string{"end call"}},
		{Action: "leave call", Tooltips: []string{"leave"}},
	}

	PermissionPromptIntents = []Intent{
		{Action: "dismiss permission prompt", Texts: []string{"allow microphone and camera", "allow camera and microphone"}},
		{Action: "dismiss permission prompt", Texts: []string{"allow"}, Exclude: []string{"don't allow", "block"}},
		{Action: "dismiss permission prompt", Labels: []string{"allow"}, Exclude: []string{"don't allow", "block"}},
	}

	FeedbackDialogIntents = []Intent{
		{Action: "dismiss post-call dialog", Texts: []string{"dismiss", "close", "cancel"}},
		{Action: "dismiss post-call dialog", Labels: []string{"close"}},
	}
)
