package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	var body APIResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !body.Success {
		t.Error("2xx responses must report success")
	}
	if body.Error != nil {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(w http.ResponseWriter, message string)
		wantStatus int
		wantCode   string
	}{
		{name: "bad request", fn: BadRequest, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "not found", fn: NotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "internal", fn: InternalError, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
		{name: "unauthorized", fn: Unauthorized, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "unprocessable", fn: UnprocessableEntity, wantStatus: http.StatusUnprocessableEntity, wantCode: "UNPROCESSABLE"},
		{name: "bad gateway", fn: BadGateway, wantStatus: http.StatusBadGateway, wantCode: "COLLABORATOR_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.fn(w, "boom")

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body APIResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if body.Success {
				t.Error("error responses must not report success")
			}
			if body.Error == nil || body.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", body.Error, tt.wantCode)
			}
			if body.Error != nil && body.Error.Message != "boom" {
				t.Errorf("message = %q, want boom", body.Error.Message)
			}
		})
	}
}
