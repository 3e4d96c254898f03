// Minimal end-to-end check for a running review API: intake, list, reject,
// and the matching entry on the transitions stream.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL     = getenv("API_URL", "http://localhost:8080")
	redisURL    = getenv("REDIS_URL", "")
	jwtSecret   = getenv("JWT_SECRET", "")
	intakeToken = getenv("INTAKE_TOKEN", "")
	applicant   = "412345678901234567"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	if jwtSecret == "" || intakeToken == "" {
		log.Fatal("JWT_SECRET and INTAKE_TOKEN are required")
	}
	token := adminToken()

	id := submit()
	checkPending(token, id)
	reject(token, id)
	checkRejected(token, id)

	if redisURL != "" {
		checkStream(context.Background(), id)
	}
	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func adminToken() string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "100000000000000001",
		"name":  "smoke-test",
		"admin": true,
		"iat":   now.Unix(),
		"exp":   now.Add(10 * time.Minute).Unix(),
	})
	s, err := tok.SignedString([]byte(jwtSecret))
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	return s
}

// ----------------------------- applications

func submit() string {
	var resp struct {
		ID string `json:"id"`
	}
	doReq("POST", "/v1/applications", map[string]string{"X-Intake-Token": intakeToken}, map[string]any{
		"discord_id":       applicant,
		"discord_username": "smoke-" + uuid.NewString()[:8],
		"score":            70,
		"total_questions":  10,
		"correct_answers":  7,
		"wrong_answers":    3,
	}, &resp, http.StatusCreated)
	if resp.ID == "" {
		log.Fatal("submit: empty id")
	}
	return resp.ID
}

func checkPending(tok, id string) {
	var resp struct {
		Applications []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"applications"`
	}
	doReq("GET", "/v1/applications?status=pending", bearer(tok), nil, &resp, http.StatusOK)
	for _, a := range resp.Applications {
		if a.ID == id {
			return
		}
	}
	log.Fatal("list: submitted application not pending")
}

func reject(tok, id string) {
	var out struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	doReq("POST", "/v1/applications/"+id+"/reject", bearer(tok), map[string]any{
		"reason": "smoke test",
	}, &out, http.StatusOK)
	if !out.Success {
		log.Fatalf("reject: not committed (%s)", out.Code)
	}
}

func checkRejected(tok, id string) {
	var app struct {
		Status          string `json:"status"`
		RejectionReason string `json:"rejection_reason"`
	}
	doReq("GET", "/v1/applications/"+id, bearer(tok), nil, &app, http.StatusOK)
	if app.Status != "rejected" || app.RejectionReason != "smoke test" {
		log.Fatalf("get: want rejected/smoke test, got %s/%s", app.Status, app.RejectionReason)
	}
}

// ----------------------------- stream

func checkStream(ctx context.Context, id string) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	entries, err := rdb.XRevRangeN(ctx, "review.transitions", "+", "-", 20).Result()
	if err != nil {
		log.Fatalf("xrevrange: %v", err)
	}
	for _, e := range entries {
		if e.Values["application_id"] == id {
			return
		}
	}
	log.Fatal("stream: no transition event for application")
}

// ----------------------------- helpers

func bearer(tok string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + tok}
}

func doReq(method, path string, headers map[string]string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
