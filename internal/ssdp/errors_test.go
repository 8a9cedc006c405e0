package ssdp

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKind_String(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{KindMalformedPacket, "MalformedPacket"},
		{KindTransientSocket, "TransientSocketError"},
		{KindExhaustedRetries, "ExhaustedRetries"},
		{KindResponseSend, "ResponseSendFailure"},
		{KindStartupBind, "StartupBindFailure"},
		{ErrorKind(99), "ErrorKind(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "malformed",
			err:  NewMalformedPacketError("empty payload"),
			want: "ssdp MalformedPacket: parse: empty payload",
		},
		{
			name: "transient with address",
			err:  NewTransientSocketError("receive", "239.255.255.250:1900", errors.New("connection refused")),
			want: "ssdp TransientSocketError: receive 239.255.255.250:1900: connection refused",
		},
		{
			name: "response send",
			err:  NewResponseSendError("10.0.0.9:50000", errors.New("no route to host")),
			want: "ssdp ResponseSendFailure: respond 10.0.0.9:50000: no route to host",
		},
		{
			name: "exhausted retries",
			err:  NewExhaustedRetriesError(5, nil),
			want: "ssdp ExhaustedRetries: receive loop stopped after 5 consecutive failures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	cause := errors.New("address already in use")

	tests := []struct {
		name          string
		err           error
		isMalformed   bool
		isTransient   bool
		isExhausted   bool
		isResponse    bool
		isStartupBind bool
	}{
		{name: "malformed", err: NewMalformedPacketError("x"), isMalformed: true},
		{name: "transient", err: NewTransientSocketError("bind", "", cause), isTransient: true},
		{name: "exhausted", err: NewExhaustedRetriesError(5, cause), isExhausted: true},
		{name: "response", err: NewResponseSendError("", cause), isResponse: true},
		{name: "startup", err: NewStartupBindError("join", "", cause), isStartupBind: true},
		{name: "wrapped startup", err: fmt.Errorf("run: %w", NewStartupBindError("join", "", cause)), isStartupBind: true},
		{name: "plain error", err: cause},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checks := []struct {
				pred string
				got  bool
				want bool
			}{
				{"IsMalformed", IsMalformed(tt.err), tt.isMalformed},
				{"IsTransient", IsTransient(tt.err), tt.isTransient},
				{"IsExhaustedRetries", IsExhaustedRetries(tt.err), tt.isExhausted},
				{"IsResponseSend", IsResponseSend(tt.err), tt.isResponse},
				{"IsStartupBind", IsStartupBind(tt.err), tt.isStartupBind},
				{"errors.Is(ErrExhaustedRetries)", errors.Is(tt.err, ErrExhaustedRetries), tt.isExhausted},
			}
			for _, c := range checks {
				if c.got != c.want {
					t.Errorf("%s(%v) = %v, want %v", c.pred, tt.err, c.got, c.want)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := NewExhaustedRetriesError(5, NewTransientSocketError("receive", "", cause))

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(%v, cause) = false, want true", err)
	}
	if !IsTransient(errors.Unwrap(err)) {
		t.Errorf("Unwrap(%v) should be a transient socket error", err)
	}
}
