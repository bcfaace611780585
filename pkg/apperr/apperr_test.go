package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *Error
		wantMsg string
	}{
		{
			name:    "simple error message",
			err:     New(InvalidRequest, "missing code", nil),
			wantMsg: "missing code",
		},
		{
			name:    "error with underlying error",
			err:     New(StoreUnavailable, "store unavailable", errors.New("database is locked")),
			wantMsg: "store unavailable",
		},
		{
			name:    "empty message",
			err:     New(Internal, "", nil),
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", got, tt.wantMsg)
			}
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	root := errors.New("connection refused")
	appErr := New(StoreUnavailable, "store unavailable", root)

	if !errors.Is(appErr, root) {
		t.Error("errors.Is should find wrapped error")
	}
	if appErr.Unwrap() != root {
		t.Errorf("Unwrap() = %v, want %v", appErr.Unwrap(), root)
	}
	if New(InvalidRequest, "x", nil).Unwrap() != nil {
		t.Error("Unwrap() with nil underlying should be nil")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Type
	}{
		{"direct", New(NotFound, "totem not found", nil), NotFound},
		{"wrapped", fmt.Errorf("issue token: %w", New(StoreUnavailable, "down", nil)), StoreUnavailable},
		{"plain error", errors.New("boom"), Internal},
		{"nil", nil, Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("TypeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(NotLinked, "not linked", nil))
	if !Is(err, NotLinked) {
		t.Error("Is should match the wrapped type")
	}
	if Is(err, NotFound) {
		t.Error("Is should not match a different type")
	}
	if Is(nil, Internal) {
		t.Error("Is(nil) should be false")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Type]int{
		InvalidRequest:   http.StatusBadRequest,
		NotFound:         http.StatusNotFound,
		NotLinked:        http.StatusNotFound,
		Unauthorized:     http.StatusUnauthorized,
		Forbidden:        http.StatusForbidden,
		Conflict:         http.StatusConflict,
		UpstreamRejected: http.StatusBadGateway,
		UpstreamProtocol: http.StatusBadGateway,
		StoreUnavailable: http.StatusServiceUnavailable,
		RateLimited:      http.StatusTooManyRequests,
		Internal:         http.StatusInternalServerError,
		Type("unknown"):  http.StatusInternalServerError,
	}
	for typ, want := range tests {
		if got := HTTPStatus(typ); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", typ, got, want)
		}
	}
}

func TestStatusOf(t *testing.T) {
	if got := StatusOf(WithStatus(UpstreamRejected, http.StatusBadRequest, "rejected", nil)); got != http.StatusBadRequest {
		t.Errorf("explicit status = %d, want 400", got)
	}
	if got := StatusOf(New(UpstreamRejected, "rejected", nil)); got != http.StatusBadGateway {
		t.Errorf("default status = %d, want 502", got)
	}
	if got := StatusOf(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("plain error status = %d, want 500", got)
	}
}

func TestError_ErrorsAs(t *testing.T) {
	var target *Error
	if !errors.As(fmt.Errorf("ctx: %w", New(Forbidden, "not yours", nil)), &target) {
		t.Fatal("errors.As should find Error type")
	}
	if target.Type != Forbidden {
		t.Errorf("errors.As Type = %v, want %v", target.Type, Forbidden)
	}
}
