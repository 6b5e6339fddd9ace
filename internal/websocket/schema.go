package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionNavigate Action = "navigate"
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records or overwrites a single answer.
type AnswerRequest struct {
	Action         Action `json:"action"`
	QuestionIndex  int    `json:"question_index"`
	SelectedOption string `json:"selected_option"`
}

// NavigateRequest moves the current question position.
type NavigateRequest struct {
	Action        Action `json:"action"`
	QuestionIndex int    `json:"question_index"`
}

// AutosaveRequest asks the server to persist a snapshot immediately, ahead
// of the periodic interval.
type AutosaveRequest struct {
	Action Action `json:"action"`
}

// SubmitRequest finishes and scores the session.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSuccess   Event = "success"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventPong      Event = "pong"
)

type AckResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
}

// TickResponse pushes the authoritative remaining time to the client.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// SubmittedResponse carries the final score once the session ends, whether
// by the candidate's submit or by the clock running out.
type SubmittedResponse struct {
	Event      Event   `json:"event"`
	Status     string  `json:"status"`
	Percentage float64 `json:"percentage"`
	Result     string  `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
