package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
)

type fakeWallet struct {
	got service.TopUpInput
	err error
}

func (f *fakeWallet) ListTransactions(context.Context, service.TransactionFilter) ([]model.Transaction, error) {
	return nil, f.err
}

func (f *fakeWallet) TopUp(_ context.Context, in service.TopUpInput) (*service.TopUpResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &service.TopUpResult{
		Transaction: &model.Transaction{UserID: in.UserID, Amount: in.Amount, Type: model.TransactionTopUp},
		Balance:     in.Amount,
	}, nil
}

func TestWalletHandler_TopUp(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"credited", `{"user_id":"U1","amount":500,"access_password":"s3cret-pass"}`, nil, http.StatusCreated},
		{"zero amount", `{"user_id":"U1","amount":0,"access_password":"s3cret-pass"}`, nil, http.StatusUnprocessableEntity},
		{"missing password", `{"user_id":"U1","amount":10}`, nil, http.StatusUnprocessableEntity},
		{"wrong password", `{"user_id":"U1","amount":10,"access_password":"nope"}`, service.ErrInvalidAccessPassword, http.StatusForbidden},
		{"unknown user", `{"user_id":"U9","amount":10,"access_password":"s3cret-pass"}`, service.ErrUserNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeWallet{err: tt.err}
			h := NewWalletHandler(fake, discardLogger())

			rec := httptest.NewRecorder()
			h.TopUp(rec, httptest.NewRequest(http.MethodPost, "/wallet/top-up", strings.NewReader(tt.body)))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusCreated {
				return
			}

			var result service.TopUpResult
			if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
				t.Fatal(err)
			}
			if result.Balance != 500 || fake.got.AccessPassword != "s3cret-pass" {
				t.Errorf("result = %+v, input = %+v", result, fake.got)
			}
		})
	}
}

type fakePasswords struct {
	verified *model.AccessPassword
	err      error
	created  service.CreateAccessPasswordInput
}

func (f *fakePasswords) Create(_ context.Context, in service.CreateAccessPasswordInput) (*model.AccessPassword, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.AccessPassword{ID: "AP1", Name: in.Name, IsActive: true, ExpiresAt: in.ExpiresAt}, nil
}

func (f *fakePasswords) List(context.Context) ([]service.AccessPasswordView, error) {
	return []service.AccessPasswordView{{AccessPassword: model.AccessPassword{ID: "AP1"}, Expired: true}}, f.err
}

func (f *fakePasswords) Deactivate(context.Context, string, string) error { return f.err }

func (f *fakePasswords) Verify(context.Context, string) (*model.AccessPassword, error) {
	return f.verified, f.err
}

func TestAccessPasswordHandler_Create(t *testing.T) {
	fake := &fakePasswords{}
	h := NewAccessPasswordHandler(fake, discardLogger())

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/access-passwords",
		strings.NewReader(`{"name":"March","password":"long-enough","expires_at":"2030-01-01T00:00:00Z"}`)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if fake.created.ExpiresAt == nil || !fake.created.ExpiresAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expires_at = %v", fake.created.ExpiresAt)
	}
	if strings.Contains(rec.Body.String(), "long-enough") {
		t.Error("response must not echo the password")
	}

	rec = httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/access-passwords",
		strings.NewReader(`{"name":"March","password":"short"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("short password: status = %d", rec.Code)
	}
}

func TestAccessPasswordHandler_Verify(t *testing.T) {
	h := NewAccessPasswordHandler(&fakePasswords{verified: &model.AccessPassword{Name: "March"}}, discardLogger())

	rec := httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/access-passwords/verify", strings.NewReader(`{"password":"x"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Errorf("body = %s", rec.Body)
	}

	h = NewAccessPasswordHandler(&fakePasswords{err: service.ErrInvalidAccessPassword}, discardLogger())
	rec = httptest.NewRecorder()
	h.Verify(rec, httptest.NewRequest(http.MethodPost, "/access-passwords/verify", strings.NewReader(`{"password":"x"}`)))
	if rec.Code != http.StatusForbidden {
		t.Errorf("invalid password: status = %d", rec.Code)
	}
}
