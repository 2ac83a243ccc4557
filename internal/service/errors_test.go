package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeSuccess},
		{"fields", ErrFieldsMissing, CodeFieldsMissing},
		{"wrapped not found", fmt.Errorf("login: %w", ErrNotFound), CodeNotFound},
		{"password too long", fmt.Errorf("hash password: %w", auth.ErrPasswordTooLong), CodePasswordTooLong},
		{"not registered", ErrNotRegistered, CodeNotRegistered},
		{"unknown", errors.New("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CodeFor(tt.err); got != tt.want {
				t.Errorf("CodeFor(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestActionsFor(t *testing.T) {
	t.Parallel()

	if got := ActionsFor(ErrIncorrectCredentials); got != nil {
		t.Errorf("ActionsFor(incorrect) = %v, want nil", got)
	}
	if got := ActionsFor(fmt.Errorf("x: %w", ErrFederatedIdentityMissing)); len(got) != 1 || got[0] != ActionDisconnectFederated {
		t.Errorf("ActionsFor(identity missing) = %v", got)
	}
}
