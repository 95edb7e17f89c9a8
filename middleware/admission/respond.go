package admission

import (
	"encoding/json"
	"net/http"

	"flux-gateway/middleware/admission/domain"
)

type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	Challenge  string `json:"challenge,omitempty"`
	Difficulty *int   `json:"difficulty,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor traduz um outcome terminal em status HTTP.
func statusFor(o domain.Outcome) int {
	switch o {
	case domain.OutcomeBanned:
		return http.StatusForbidden
	case domain.OutcomeChallenged:
		return http.StatusUnauthorized
	case domain.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case domain.OutcomeBadGateway:
		return http.StatusBadGateway
	case domain.OutcomeGatewayTimeout:
		return http.StatusGatewayTimeout
	case domain.OutcomeAdmitted, domain.OutcomeForwarded:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// writeVerdict escreve a resposta de um Verdict terminal. Nunca inclui v.Err.
func writeVerdict(w http.ResponseWriter, v domain.Verdict) {
	status := statusFor(v.Outcome)
	switch v.Outcome {
	case domain.OutcomeBanned:
		writeJSON(w, status, errorBody{Error: "Access Denied", Message: "You are banned."})
	case domain.OutcomeChallenged:
		difficulty := v.Config.Difficulty
		writeJSON(w, status, errorBody{
			Error:      "Shield Active. Solve Puzzle.",
			Challenge:  string(v.Key),
			Difficulty: &difficulty,
		})
	case domain.OutcomeRateLimited:
		limit := v.Budget
		w.Header().Set("Retry-After", formatSeconds(v.RetryAfter))
		writeJSON(w, status, errorBody{Error: "Too Many Requests", Limit: &limit})
	default:
		writeOutcome(w, v.Outcome)
	}
}

// writeOutcome cobre os outcomes sem dados extras (500, 502, 504).
func writeOutcome(w http.ResponseWriter, o domain.Outcome) {
	status := statusFor(o)
	writeJSON(w, status, errorBody{Error: http.StatusText(status)})
}
