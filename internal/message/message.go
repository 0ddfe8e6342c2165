package message

// Message is a single board entry. Stores and subscriptions hand out value
// snapshots: mutating the stored entry never changes a copy that was
// already returned or delivered.
type Message struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}
