package services

import (
	"encoding/json"
	"testing"

	"github.com/eduolymp/olympiad-service/internal/models"
)

func TestGradeSingleChoice(t *testing.T) {
	payload := []byte(`{"options":[{"id":"a","text":"2"},{"id":"b","text":"4"}],"correct_option_id":"b"}`)

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "correct option", answer: `{"choice_id":"b"}`, want: true},
		{name: "wrong option", answer: `{"choice_id":"a"}`, want: false},
		{name: "malformed answer", answer: `{"choice_id":`, want: false},
		{name: "empty answer", answer: ``, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(models.TaskSingleChoice, payload, json.RawMessage(tt.answer))
			if got != tt.want {
				t.Errorf("Grade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeMultiChoice(t *testing.T) {
	payload := []byte(`{"options":[{"id":"a","text":""},{"id":"b","text":""},{"id":"c","text":""}],"correct_option_ids":["a","c"]}`)

	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{name: "exact set", answer: `{"choice_ids":["a","c"]}`, want: true},
		{name: "order does not matter", answer: `{"choice_ids":["c","a"]}`, want: true},
		{name: "subset is wrong", answer: `{"choice_ids":["a"]}`, want: false},
		{name: "superset is wrong", answer: `{"choice_ids":["a","b","c"]}`, want: false},
		{name: "disjoint", answer: `{"choice_ids":["b"]}`, want: false},
		{name: "empty", answer: `{"choice_ids":[]}`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(models.TaskMultiChoice, payload, json.RawMessage(tt.answer))
			if got != tt.want {
				t.Errorf("Grade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeShortText(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		answer  string
		want    bool
	}{
		{
			name:    "int exact",
			payload: `{"subtype":"int","expected":"42"}`,
			answer:  `{"text":"42"}`,
			want:    true,
		},
		{
			name:    "int with surrounding spaces in expected",
			payload: `{"subtype":"int","expected":" 42 "}`,
			answer:  `{"text":"42"}`,
			want:    true,
		},
		{
			name:    "int mismatch",
			payload: `{"subtype":"int","expected":"42"}`,
			answer:  `{"text":"43"}`,
			want:    false,
		},
		{
			name:    "float within epsilon",
			payload: `{"subtype":"float","expected":"3.14","epsilon":0.01}`,
			answer:  `{"text":"3.141"}`,
			want:    true,
		},
		{
			name:    "float outside epsilon",
			payload: `{"subtype":"float","expected":"3.14","epsilon":0.01}`,
			answer:  `{"text":"3.2"}`,
			want:    false,
		},
		{
			name:    "float comma separator",
			payload: `{"subtype":"float","expected":"3.5","epsilon":0.001}`,
			answer:  `{"text":"3,5"}`,
			want:    true,
		},
		{
			name:    "text case insensitive by default",
			payload: `{"subtype":"text","expected":"Photosynthesis"}`,
			answer:  `{"text":"photosynthesis"}`,
			want:    true,
		},
		{
			name:    "text case sensitive when disabled",
			payload: `{"subtype":"text","expected":"Photosynthesis","case_insensitive":false}`,
			answer:  `{"text":"photosynthesis"}`,
			want:    false,
		},
		{
			name:    "text collapse spaces",
			payload: `{"subtype":"text","expected":"red  green blue","collapse_spaces":true}`,
			answer:  `{"text":"red green  blue"}`,
			want:    true,
		},
		{
			name:    "text spaces preserved by default",
			payload: `{"subtype":"text","expected":"red  green"}`,
			answer:  `{"text":"red green"}`,
			want:    false,
		},
		{
			name:    "unknown subtype never correct",
			payload: `{"subtype":"essay","expected":"x"}`,
			answer:  `{"text":"x"}`,
			want:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Grade(models.TaskShortText, []byte(tt.payload), json.RawMessage(tt.answer))
			if got != tt.want {
				t.Errorf("Grade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGradeIsTotal(t *testing.T) {
	// Garbage in every position must grade incorrect, never panic.
	inputs := []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{`), json.RawMessage(`[1,2]`)}
	payloads := [][]byte{nil, []byte(`{`), []byte(`{"options":null}`)}
	types := []models.TaskType{models.TaskSingleChoice, models.TaskMultiChoice, models.TaskShortText, models.TaskType("unknown")}

	for _, taskType := range types {
		for _, payload := range payloads {
			for _, answer := range inputs {
				if Grade(taskType, payload, answer) {
					t.Errorf("Grade(%q, %s, %s) = true, want false", taskType, payload, answer)
				}
			}
		}
	}
}

func TestPassThreshold(t *testing.T) {
	tests := []struct {
		scoreMax    int
		passPercent int
		want        int
	}{
		{scoreMax: 10, passPercent: 50, want: 5},
		{scoreMax: 7, passPercent: 50, want: 4},
		{scoreMax: 3, passPercent: 34, want: 2},
		{scoreMax: 10, passPercent: 0, want: 0},
		{scoreMax: 10, passPercent: 100, want: 10},
		{scoreMax: 0, passPercent: 50, want: 0},
	}
	for _, tt := range tests {
		if got := passThreshold(tt.scoreMax, tt.passPercent); got != tt.want {
			t.Errorf("passThreshold(%d, %d) = %d, want %d", tt.scoreMax, tt.passPercent, got, tt.want)
		}
	}
}
