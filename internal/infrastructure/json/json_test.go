package json

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hilthontt/tourchat/internal/domain"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"text":"hi"}`},
		{name: "empty", body: ``, wantErr: true},
		{name: "unknown field", body: `{"text":"hi","extra":1}`, wantErr: true},
		{name: "two objects", body: `{"text":"a"}{"text":"b"}`, wantErr: true},
		{name: "too large", body: `{"text":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst struct {
				Text string `json:"text"`
			}
			err := Read(r, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Read() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && dst.Text != "hi" {
				t.Fatalf("expected decoded text, got %q", dst.Text)
			}
		})
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "denied", err: domain.Denied(domain.ReasonRequiresAdmin), status: http.StatusForbidden, reason: "requires_admin"},
		{name: "already", err: domain.Denied(domain.ReasonNotBanned), status: http.StatusConflict, reason: "not_banned"},
		{name: "missing target", err: domain.Denied(domain.ReasonMissingTarget), status: http.StatusBadRequest, reason: "missing_target"},
		{name: "quota", err: domain.Denied(domain.ReasonRoomQuota), status: http.StatusTooManyRequests, reason: "room_quota"},
		{name: "not found", err: domain.Denied(domain.ReasonRoomNotFound), status: http.StatusNotFound, reason: "room_not_found"},
		{name: "missing message", err: domain.ErrMessageNotFound, status: http.StatusNotFound, reason: "message_not_found"},
		{name: "anonymous", err: domain.NotAuthenticated(), status: http.StatusUnauthorized},
		{name: "validation", err: domain.NewValidationError("text", errors.New("too long")), status: http.StatusBadRequest},
		{name: "store", err: domain.Unavailable("rooms.get", errors.New("socket closed")), status: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteDomainError(w, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Reason != tt.reason {
				t.Fatalf("expected reason %q, got %q", tt.reason, resp.Reason)
			}
			if strings.Contains(resp.Message, "socket closed") || strings.Contains(resp.Message, "boom") {
				t.Fatalf("internal error text leaked: %q", resp.Message)
			}
		})
	}
}
