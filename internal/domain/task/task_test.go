package task

import (
	"encoding/json"
	"testing"
)

func TestArgsPreserveOrder(t *testing.T) {
	var a Args
	if err := json.Unmarshal([]byte(`{"paper_id":42,"target_lang":"zh-CN","extra":{"b":1}}`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(a) != 3 {
		t.Fatalf("expected 3 args, got %d", len(a))
	}
	wantKeys := []string{"paper_id", "target_lang", "extra"}
	for i, k := range wantKeys {
		if a[i].Key != k {
			t.Errorf("arg %d key = %q, want %q", i, a[i].Key, k)
		}
	}

	out, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(out); got != `{"paper_id":42,"target_lang":"zh-CN","extra":{"b":1}}` {
		t.Errorf("marshal = %s", got)
	}
}

func TestArgsString(t *testing.T) {
	a := Args{{Key: "paper_id", Value: float64(40668760)}, {Key: "lang", Value: "en"}}

	if got := a.String("paper_id", ""); got != "40668760" {
		t.Errorf("paper_id = %q", got)
	}
	if got := a.String("lang", "zh-CN"); got != "en" {
		t.Errorf("lang = %q", got)
	}
	if got := a.String("missing", "def"); got != "def" {
		t.Errorf("missing = %q", got)
	}
}

func TestArgsRejectNonObject(t *testing.T) {
	var a Args
	if err := json.Unmarshal([]byte(`[1,2]`), &a); err == nil {
		t.Fatal("expected error for array args")
	}
}

func TestArgsNull(t *testing.T) {
	a := Args{{Key: "x", Value: 1}}
	if err := json.Unmarshal([]byte(`null`), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil args, got %v", a)
	}
}

func TestNewCompletion(t *testing.T) {
	tests := []struct {
		name        string
		result      *Result
		wantStatus  string
		wantURL     string
		wantText    string
		wantMessage string
	}{
		{
			name:        "failure",
			result:      Failed("t1", KindUnknownTool, "unknown tool: foo"),
			wantStatus:  CompletionFailed,
			wantMessage: "task failed: unknown tool: foo",
		},
		{
			name:        "ppt object",
			result:      Succeeded("t2", json.RawMessage(`{"type":"ppt_result","url":"http://x/deck.pptx"}`)),
			wantStatus:  CompletionDone,
			wantURL:     "http://x/deck.pptx",
			wantMessage: "presentation ready",
		},
		{
			name:        "translation list",
			result:      Succeeded("t3", json.RawMessage(`[{"type":"translation_result","text":"hello"}]`)),
			wantStatus:  CompletionDone,
			wantText:    "hello",
			wantMessage: "translation completed",
		},
		{
			name:        "plain payload",
			result:      Succeeded("t4", json.RawMessage(`{"a":1}`)),
			wantStatus:  CompletionDone,
			wantMessage: "task completed",
		},
		{
			name:        "error card",
			result:      Succeeded("t6", json.RawMessage(`[{"type":"error","payload":{"message":"paper not found"}}]`)),
			wantStatus:  CompletionFailed,
			wantMessage: "task failed: paper not found",
		},
		{
			name:        "ppt without url",
			result:      Succeeded("t5", json.RawMessage(`{"type":"ppt_result"}`)),
			wantStatus:  CompletionDone,
			wantMessage: "task completed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompletion(tt.result)
			if c.TaskID != tt.result.TaskID {
				t.Errorf("task_id = %q", c.TaskID)
			}
			if c.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", c.Status, tt.wantStatus)
			}
			if c.ResultURL != tt.wantURL {
				t.Errorf("result_url = %q, want %q", c.ResultURL, tt.wantURL)
			}
			if c.TranslationText != tt.wantText {
				t.Errorf("translation_text = %q, want %q", c.TranslationText, tt.wantText)
			}
			if c.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", c.Message, tt.wantMessage)
			}
		})
	}
}

func TestNewPoll(t *testing.T) {
	p := NewPoll("t1", nil)
	if p.Status != PollRunning || p.Result != nil {
		t.Fatalf("unexpected running poll: %+v", p)
	}

	r := Succeeded("t1", json.RawMessage(`{}`))
	p = NewPoll("t1", r)
	if p.Status != PollDone || p.Result != r {
		t.Fatalf("unexpected done poll: %+v", p)
	}
}
