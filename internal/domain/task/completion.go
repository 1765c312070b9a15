package task

import (
	"encoding/json"
)

// Completion statuses pushed to waiting clients.
const (
	CompletionDone   = "done"
	CompletionFailed = "failed"
)

// Payload item types recognised when enriching a completion.
const (
	itemError             = "error"
	itemPPTResult         = "ppt_result"
	itemTranslationResult = "translation_result"
)

// Completion is the message pushed to a client when its task finishes.
type Completion struct {
	TaskID          string          `json:"task_id"`
	Status          string          `json:"status"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	ErrorKind       ErrorKind       `json:"error_kind,omitempty"`
	Message         string          `json:"message"`
	ResultURL       string          `json:"result_url,omitempty"`
	TranslationText string          `json:"translation_text,omitempty"`
}

// payloadItem is the subset of a result card the completion cares about.
type payloadItem struct {
	Type    string `json:"type"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Payload struct {
		Message string `json:"message"`
	} `json:"payload"`
}

// NewCompletion renders r as a client-facing completion message.
func NewCompletion(r *Result) Completion {
	if !r.OK() {
		return Completion{
			TaskID:    r.TaskID,
			Status:    CompletionFailed,
			Error:     r.Failure.Message,
			ErrorKind: r.Failure.Kind,
			Message:   "task failed: " + r.Failure.Message,
		}
	}

	c := Completion{
		TaskID:  r.TaskID,
		Status:  CompletionDone,
		Result:  r.Payload,
		Message: "task completed",
	}

	for _, item := range payloadItems(r.Payload) {
		switch item.Type {
		case itemError:
			msg := item.Payload.Message
			if msg == "" {
				msg = "unknown error"
			}
			c.Status = CompletionFailed
			c.Error = msg
			c.Message = "task failed: " + msg
			return c
		case itemPPTResult:
			if item.URL == "" {
				continue
			}
			c.ResultURL = item.URL
			c.Message = "presentation ready"
			return c
		case itemTranslationResult:
			c.TranslationText = item.Text
			c.ResultURL = item.URL
			c.Message = "translation completed"
			return c
		}
	}
	return c
}

// payloadItems accepts either a single card object or a list of cards.
func payloadItems(raw json.RawMessage) []payloadItem {
	if len(raw) == 0 {
		return nil
	}
	var list []payloadItem
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one payloadItem
	if err := json.Unmarshal(raw, &one); err == nil {
		return []payloadItem{one}
	}
	return nil
}
