package transport

import (
	"errors"
	"testing"
	"time"

	bserrors "github.com/boardwave/boardsync/internal/errors"
)

func TestNextState(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		trigger Trigger
		want    State
		wantErr bool
	}{
		{"connect from disconnected", StateDisconnected, TriggerConnect, StateConnecting, false},
		{"open", StateConnecting, TriggerOpen, StateConnected, false},
		{"handshake failure", StateConnecting, TriggerDrop, StateReconnecting, false},
		{"disconnect while dialing", StateConnecting, TriggerDisconnect, StateDisconnected, false},
		{"unclean close", StateConnected, TriggerDrop, StateReconnecting, false},
		{"server normal close", StateConnected, TriggerServerClose, StateDisconnected, false},
		{"caller disconnect", StateConnected, TriggerDisconnect, StateClosing, false},
		{"close finished", StateClosing, TriggerClosed, StateDisconnected, false},
		{"backoff expired", StateReconnecting, TriggerRetry, StateConnecting, false},
		{"manual connect while waiting", StateReconnecting, TriggerConnect, StateConnecting, false},
		{"cap reached", StateReconnecting, TriggerGiveUp, StateDisconnected, false},
		{"disconnect while waiting", StateReconnecting, TriggerDisconnect, StateDisconnected, false},

		{"open without dialing", StateDisconnected, TriggerOpen, StateDisconnected, true},
		{"connect while connected", StateConnected, TriggerConnect, StateConnected, true},
		{"drop while disconnected", StateDisconnected, TriggerDrop, StateDisconnected, true},
		{"retry while connected", StateConnected, TriggerRetry, StateConnected, true},
		{"connect while closing", StateClosing, TriggerConnect, StateClosing, true},
		{"give up while connected", StateConnected, TriggerGiveUp, StateConnected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextState(tt.from, tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, bserrors.ErrInvalidTransition) {
					t.Fatalf("nextState() error = %v, want ErrInvalidTransition", err)
				}
			} else if err != nil {
				t.Fatalf("nextState() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("nextState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateClosing, "closing"},
		{StateReconnecting, "reconnecting"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestReconnectPolicy(t *testing.T) {
	tests := []struct {
		name string
		base string
		max  int
		want []string
	}{
		{"defaults", "1s", 5, []string{"1s", "2s", "4s", "8s", "16s"}},
		{"two attempts", "500ms", 2, []string{"500ms", "1s"}},
		{"disabled", "1s", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := time.ParseDuration(tt.base)
			if err != nil {
				t.Fatal(err)
			}
			p := newReconnectPolicy(base, tt.max)

			var got []string
			for range tt.max + 3 {
				d := p.NextBackOff()
				if d < 0 {
					break
				}
				got = append(got, d.String())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("delays = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("delay %d = %s, want %s", i+1, got[i], tt.want[i])
				}
			}

			p.Reset()
			if tt.max > 0 {
				if d := p.NextBackOff(); d.String() != tt.want[0] {
					t.Errorf("after Reset first delay = %s, want %s", d, tt.want[0])
				}
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		creds   Credentials
		want    string
		wantErr bool
	}{
		{
			name:  "all params",
			base:  "ws://localhost:8080/ws",
			creds: Credentials{Token: "tok", UserID: "u1", ProjectID: "p1"},
			want:  "ws://localhost:8080/ws?projectId=p1&token=tok&userId=u1",
		},
		{
			name:  "empty project id",
			base:  "wss://collab.example.com/ws",
			creds: Credentials{Token: "a b", UserID: "u1"},
			want:  "wss://collab.example.com/ws?projectId=&token=a+b&userId=u1",
		},
		{name: "http scheme", base: "http://localhost/ws", creds: Credentials{Token: "t", UserID: "u"}, wantErr: true},
		{name: "missing host", base: "ws:///ws", creds: Credentials{Token: "t", UserID: "u"}, wantErr: true},
		{name: "unparseable", base: "ws://[::1", creds: Credentials{Token: "t", UserID: "u"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(tt.base, tt.creds)
			if tt.wantErr {
				if !errors.Is(err, bserrors.ErrInvalidURL) {
					t.Fatalf("buildURL() error = %v, want ErrInvalidURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildURL() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
