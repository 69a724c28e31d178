package tapsim

import "net/http"

// Scenario returns the canonical tap sequence for uids a and b:
//
//	tap a        -> 201 stored
//	tap a        -> 429 inside the cooldown
//	wait; tap a  -> 200 toggled off
//	GET /score   -> 404 nothing held
//	wait; tap b  -> 201 stored
//	GET /score   -> 200, or 404 when b has no remote score
func Scenario(a, b string, cfg *Config) []Step {
	tapBody := func(uid string) *TapRequest { return &TapRequest{UID: uid} }
	return []Step{
		{Name: "store " + a, Method: http.MethodPost, Path: "/tap", Body: tapBody(a), Expect: []int{http.StatusCreated}},
		{Name: "rate limit " + a, Method: http.MethodPost, Path: "/tap", Body: tapBody(a), Expect: []int{http.StatusTooManyRequests}},
		{Name: "toggle off " + a, Method: http.MethodPost, Path: "/tap", Body: tapBody(a), WaitBefore: cfg.Wait, Expect: []int{http.StatusOK}},
		{Name: "score with empty slot", Method: http.MethodGet, Path: "/score", Expect: []int{http.StatusNotFound}},
		{Name: "store " + b, Method: http.MethodPost, Path: "/tap", Body: tapBody(b), WaitBefore: cfg.Wait, Expect: []int{http.StatusCreated}},
		{Name: "score of " + b, Method: http.MethodGet, Path: "/score", Expect: []int{http.StatusOK, http.StatusNotFound}},
	}
}

func expected(s Step, status int) bool {
	for _, code := range s.Expect {
		if code == status {
			return true
		}
	}
	return false
}
