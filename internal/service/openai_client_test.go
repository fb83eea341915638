package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wentilabs/wenti-namecard-agent/internal/config"
)

func TestResponsesResponse_Outcome(t *testing.T) {
	tests := []struct {
		name string
		resp *ResponsesResponse
		want OutcomeKind
	}{
		{"nil response", nil, OutcomeIncomplete},
		{"not completed", &ResponsesResponse{Status: "failed"}, OutcomeIncomplete},
		{"completed empty", &ResponsesResponse{Status: "completed"}, OutcomeIncomplete},
		{
			"tool call",
			&ResponsesResponse{
				Status: "completed",
				Output: []OutputItem{{Type: "function_call", Name: "extract_namecard_data", Arguments: "{}"}},
			},
			OutcomeToolCall,
		},
		{
			"text only",
			&ResponsesResponse{
				Status:  "completed",
				Content: []ContentItem{{Type: "output_text", Text: "not a card"}},
			},
			OutcomeText,
		},
		{
			"blank text is incomplete",
			&ResponsesResponse{
				Status:  "completed",
				Content: []ContentItem{{Type: "output_text", Text: "   "}},
			},
			OutcomeIncomplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Outcome().Kind; got != tt.want {
				t.Fatalf("Outcome().Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResponsesResponse_Outcome_ToolCallFields(t *testing.T) {
	resp := &ResponsesResponse{
		Status: "completed",
		Output: []OutputItem{{Type: "function_call", Name: "extract_namecard_data", Arguments: `{"full_name":"A"}`}},
	}

	outcome := resp.Outcome()
	if outcome.ToolName != "extract_namecard_data" {
		t.Fatalf("unexpected tool name: %q", outcome.ToolName)
	}
	if outcome.Arguments != `{"full_name":"A"}` {
		t.Fatalf("unexpected arguments: %q", outcome.Arguments)
	}
}

func TestOpenAIClient_CreateResponse(t *testing.T) {
	var gotAuth string
	var gotBody ResponsesRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		json.NewEncoder(w).Encode(ResponsesResponse{
			ID:     "resp_1",
			Status: "completed",
			Output: []OutputItem{{Type: "function_call", Name: "extract_namecard_data", Arguments: "{}"}},
		})
	}))
	defer srv.Close()

	origBase := config.OpenAI.BaseURL
	config.OpenAI.BaseURL = srv.URL
	defer func() { config.OpenAI.BaseURL = origBase }()
	t.Setenv("OPENAI_API_KEY", "test-key")

	client := NewOpenAIClient(&EnvResolver{})
	resp, err := client.CreateResponse(context.Background(), buildExtractionRequest("https://files.example/p.jpg"))
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.Model != config.OpenAI.Model {
		t.Fatalf("unexpected model: %q", gotBody.Model)
	}
	if len(gotBody.Tools) != 1 {
		t.Fatalf("expected one tool in request, got %d", len(gotBody.Tools))
	}
	if resp.Outcome().Kind != OutcomeToolCall {
		t.Fatalf("unexpected outcome: %v", resp.Outcome().Kind)
	}
}

func TestOpenAIClient_CreateResponse_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	origBase := config.OpenAI.BaseURL
	config.OpenAI.BaseURL = srv.URL
	defer func() { config.OpenAI.BaseURL = origBase }()
	t.Setenv("OPENAI_API_KEY", "bad-key")

	client := NewOpenAIClient(&EnvResolver{})
	_, err := client.CreateResponse(context.Background(), buildExtractionRequest("https://files.example/p.jpg"))
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
