package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testIssuer(url string) *PasswordlessIssuer {
	p := NewPasswordlessIssuer("tenant.test", "client-1", "aud")
	p.baseURL = url
	return p
}

func TestRequestCodePostsStart(t *testing.T) {
	var got startRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/passwordless/start" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := testIssuer(srv.URL).RequestCode(context.Background(), "a@b.test"); err != nil {
		t.Fatalf("request code: %v", err)
	}
	if got.Email != "a@b.test" || got.Connection != "email" || got.Send != "code" || got.ClientID != "client-1" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestExchangeCodeReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.GrantType != otpGrantType || req.Username != "a@b.test" || req.OTP != "123456" {
			t.Errorf("unexpected payload: %+v", req)
		}
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1"})
	}))
	defer srv.Close()

	token, err := testIssuer(srv.URL).ExchangeCode(context.Background(), "a@b.test", "123456")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if token != "tok-1" {
		t.Fatalf("unexpected token %q", token)
	}
}

func TestExchangeCodeRejectedByIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := testIssuer(srv.URL).ExchangeCode(context.Background(), "a@b.test", "000000"); err == nil {
		t.Fatal("expected error for rejected code")
	}
}

func TestExchangeCodeEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(tokenResponse{})
	}))
	defer srv.Close()

	if _, err := testIssuer(srv.URL).ExchangeCode(context.Background(), "a@b.test", "123456"); err == nil {
		t.Fatal("expected error for empty token")
	}
}
