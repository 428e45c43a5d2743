package backend

// envelope is the common part of every backend JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// LoginStatus is the /check_login response.
type LoginStatus struct {
	LoggedIn bool   `json:"logged_in"`
	UserID   *int64 `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// AuthResult is returned by /login and /register on success.
type AuthResult struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// ConversationSummary is one entry of /get_conversations. UpdatedAt is kept
// as the backend's string form; the history package parses it.
type ConversationSummary struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

// HistoryMessage is one stored message of /load_conversation/{id}.
type HistoryMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// StreamEvent is one data payload of the /ask_stream event stream.
type StreamEvent struct {
	Chunk      string `json:"chunk"`
	Finished   bool   `json:"finished"`
	FullAnswer string `json:"full_answer"`
	Error      string `json:"error"`
}

// Terminal reports whether the event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Finished || e.Error != ""
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type topicRequest struct {
	Topic string `json:"topic"`
}

type queryRequest struct {
	Query string `json:"query"`
}

type urlRequest struct {
	URL string `json:"url"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

type resultResponse struct {
	Result string `json:"result"`
}

type textResponse struct {
	Text string `json:"text"`
}

type conversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
}

type historyResponse struct {
	History []HistoryMessage `json:"history"`
}
