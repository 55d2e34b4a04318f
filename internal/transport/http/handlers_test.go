package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"contest-engine/internal/app"
	"contest-engine/internal/infra/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := app.NewContestService(memory.NewContestStore(), memory.NewLedger(), memory.NewLeaderboard())
	server := httptest.NewServer(NewRouter(service))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, server *httptest.Server, method, path, userID, role string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	decoded := map[string]interface{}{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode response %s: %v", raw, err)
		}
	}
	decoded["_raw"] = string(raw)
	return resp, decoded
}

func errorCode(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("no error object in %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

// createActiveContest seeds a contest through the admin surface and returns
// its id along with the id of its single-select question.
func createActiveContest(t *testing.T, server *httptest.Server) (string, string) {
	t.Helper()
	now := time.Now().UTC()
	resp, body := doJSON(t, server, http.MethodPost, "/contests", "admin-1", "ADMIN", gin.H{
		"title":       "Launch Round",
		"description": "",
		"startTime":   now.Add(-time.Minute).Format(time.RFC3339),
		"endTime":     now.Add(time.Hour).Format(time.RFC3339),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contest: status %d body %v", resp.StatusCode, body)
	}
	contest := body["contest"].(map[string]interface{})
	contestID := contest["id"].(string)

	resp, body = doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/questions", "admin-1", "ADMIN", gin.H{
		"title":          "Pick the right one",
		"points":         10,
		"maxTimeSeconds": 30,
		"choices": []gin.H{
			{"value": "Right", "isCorrect": true},
			{"value": "Wrong"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create question: status %d body %v", resp.StatusCode, body)
	}
	question := body["question"].(map[string]interface{})
	return contestID, question["id"].(string)
}

func correctChoiceID(t *testing.T, server *httptest.Server, contestID, questionID string) string {
	t.Helper()
	resp, body := doJSON(t, server, http.MethodGet, "/contests/"+contestID+"/questions/manage", "admin-1", "ADMIN", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("manage questions: status %d", resp.StatusCode)
	}
	for _, raw := range body["questions"].([]interface{}) {
		q := raw.(map[string]interface{})
		if q["id"] != questionID {
			continue
		}
		for _, rawChoice := range q["choices"].([]interface{}) {
			choice := rawChoice.(map[string]interface{})
			if choice["isCorrect"] == true {
				return choice["id"].(string)
			}
		}
	}
	t.Fatalf("correct choice not found")
	return ""
}

func TestRequestsWithoutPrincipalAreUnauthorized(t *testing.T) {
	server := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodGet, "/contests", "", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "UNAUTHORIZED" {
		t.Fatalf("code %s, want UNAUTHORIZED", code)
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	server := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodPost, "/contests", "u1", "USER", gin.H{"title": "nope"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, body); code != "FORBIDDEN" {
		t.Fatalf("code %s, want FORBIDDEN", code)
	}
}

func TestSubmitFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)
	contestID, questionID := createActiveContest(t, server)
	choiceID := correctChoiceID(t, server, contestID, questionID)

	// Question listing before joining must not leak content.
	resp, body := doJSON(t, server, http.MethodGet, "/contests/"+contestID+"/questions", "u1", "USER", nil)
	if resp.StatusCode != http.StatusForbidden || errorCode(t, body) != "NOT_A_PARTICIPANT" {
		t.Fatalf("pre-join listing: status %d body %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/join", "u1", "USER", nil)
	if resp.StatusCode != http.StatusOK || body["userId"] != "u1" {
		t.Fatalf("join: status %d body %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, server, http.MethodGet, "/contests/"+contestID+"/questions", "u1", "USER", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("questions: status %d", resp.StatusCode)
	}
	if raw := body["_raw"].(string); strings.Contains(raw, "isCorrect") {
		t.Fatalf("participant listing leaked correct flags: %s", raw)
	}

	resp, body = doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/answers", "u1", "USER", gin.H{
		"questionId":       questionID,
		"choiceIds":        []string{choiceID},
		"timeTakenSeconds": 5,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d body %v", resp.StatusCode, body)
	}
	if body["score"].(float64) != 10 || body["awardedPoints"].(float64) != 10 {
		t.Fatalf("unexpected submit result: %v", body)
	}

	resp, body = doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/answers", "u1", "USER", gin.H{
		"questionId":       questionID,
		"choiceIds":        []string{choiceID},
		"timeTakenSeconds": 5,
	})
	if resp.StatusCode != http.StatusConflict || errorCode(t, body) != "ALREADY_ANSWERED" {
		t.Fatalf("duplicate submit: status %d body %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, server, http.MethodGet, "/contests/"+contestID+"/me", "u1", "USER", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress: status %d", resp.StatusCode)
	}
	progress := body["progress"].(map[string]interface{})
	if progress["score"].(float64) != 10 || progress["attemptedCount"].(float64) != 1 {
		t.Fatalf("unexpected progress: %v", progress)
	}

	resp, body = doJSON(t, server, http.MethodGet, "/contests/"+contestID+"/leaderboard?limit=10&offset=0", "u1", "USER", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status %d", resp.StatusCode)
	}
	if body["source"] != "live" {
		t.Fatalf("source %v, want live", body["source"])
	}
	entries := body["entries"].([]interface{})
	first := entries[0].(map[string]interface{})
	if first["userId"] != "u1" || first["rank"].(float64) != 1 {
		t.Fatalf("unexpected top entry: %v", first)
	}
}

func TestSubmitValidationErrorCarriesFieldErrors(t *testing.T) {
	server := newTestServer(t)
	contestID, questionID := createActiveContest(t, server)
	doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/join", "u1", "USER", nil)

	resp, body := doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/answers", "u1", "USER", gin.H{
		"questionId":       questionID,
		"choiceIds":        []string{},
		"timeTakenSeconds": 5,
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, body) != "VALIDATION_ERROR" {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
	details := body["error"].(map[string]interface{})["details"].(map[string]interface{})
	if _, ok := details["fieldErrors"].(map[string]interface{})["choiceIds"]; !ok {
		t.Fatalf("missing field error for choiceIds: %v", details)
	}
}

func TestLeaderboardUnknownContest(t *testing.T) {
	server := newTestServer(t)
	resp, body := doJSON(t, server, http.MethodGet, "/contests/ghost/leaderboard", "u1", "USER", nil)
	if resp.StatusCode != http.StatusNotFound || errorCode(t, body) != "CONTEST_NOT_FOUND" {
		t.Fatalf("status %d body %v", resp.StatusCode, body)
	}
}

func TestLeaderboardWebSocketStream(t *testing.T) {
	server := newTestServer(t)
	contestID, questionID := createActiveContest(t, server)
	choiceID := correctChoiceID(t, server, contestID, questionID)
	doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/join", "u1", "USER", nil)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/contests/" + contestID + "/leaderboard/ws"
	header := http.Header{}
	header.Set("X-User-Id", "u1")
	header.Set("X-User-Role", "USER")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial struct {
		Type    string `json:"type"`
		Payload struct {
			Source string `json:"source"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if initial.Type != "leaderboard" || initial.Payload.Source != "live" {
		t.Fatalf("unexpected initial message: %+v", initial)
	}

	doJSON(t, server, http.MethodPost, "/contests/"+contestID+"/answers", "u1", "USER", gin.H{
		"questionId":       questionID,
		"choiceIds":        []string{choiceID},
		"timeTakenSeconds": 5,
	})

	var update struct {
		Type    string `json:"type"`
		Payload struct {
			Entries []struct {
				UserID string  `json:"userId"`
				Score  float64 `json:"score"`
			} `json:"entries"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if len(update.Payload.Entries) == 0 {
		t.Fatalf("update carried no entries")
	}
	top := update.Payload.Entries[0]
	if top.UserID != "u1" || top.Score != 10 {
		t.Fatalf("unexpected top entry: %+v", top)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s/healthz", server.URL))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
}
