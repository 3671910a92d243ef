package transcript

import (
	"encoding/json"
	"time"
)

// Sender identifies who produced a chat turn.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// Button is a backend-supplied button descriptor. ID carries the backend's
// content identifier, Action an optional pro login identifier, and Request the
// opaque payload the flow endpoint expects back when the button is clicked.
type Button struct {
	ID      string          `json:"_id,omitempty"`
	Label   string          `json:"label"`
	Action  string          `json:"action,omitempty"`
	Request json.RawMessage `json:"request,omitempty"`
}

// LeadInfo marks a system turn recording a successful lead creation.
type LeadInfo struct {
	LeadID    string `json:"leadId"`
	CreatedAt string `json:"leadCreatedTime"`
}

// ChatTurn is one transcript entry. Turns are immutable once appended; their
// order is the sole index used to pair bot questions with user answers.
type ChatTurn struct {
	Sender     Sender    `json:"sender"`
	Text       string    `json:"text"`
	Images     []string  `json:"images,omitempty"`
	Button     *Button   `json:"button,omitempty"`
	QuestionID string    `json:"_id,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	LeadInfo   *LeadInfo `json:"leadInfo,omitempty"`
}

// ServiceContext is the structured service descriptor the flow backend embeds
// in a reply as a JSON-encoded message entry. It is metadata, never rendered.
type ServiceContext struct {
	Category        string `json:"category,omitempty"`
	SubCategory     string `json:"subCategory,omitempty"`
	CategoryCode    string `json:"categoryCode,omitempty"`
	SubCategoryCode string `json:"subCategoryCode,omitempty"`
}
