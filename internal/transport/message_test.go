package transport

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/boardwave/boardsync/internal/event"
)

func TestNewEnvelope(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)

	tests := []struct {
		name      string
		msgType   MessageType
		payload   any
		projectID string
		want      string
	}{
		{
			name:      "with project",
			msgType:   TypeCollaborativeEdit,
			payload:   EditPayload{EditType: "move", ElementID: "task-1", Changes: map[string]any{"x": 10}},
			projectID: "p1",
			want:      `{"type":"collaborative_edit","payload":{"editType":"move","elementId":"task-1","changes":{"x":10}},"userId":"u1","projectId":"p1","timestamp":1700000000123}`,
		},
		{
			name:    "nil payload and no project",
			msgType: TypePing,
			want:    `{"type":"ping","payload":{},"userId":"u1","projectId":null,"timestamp":1700000000123}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := NewEnvelope(tt.msgType, tt.payload, "u1", tt.projectID, at)
			if err != nil {
				t.Fatalf("NewEnvelope() error: %v", err)
			}
			got, err := env.Encode()
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestNewEnvelopeMarshalError(t *testing.T) {
	_, err := NewEnvelope(TypeTaskUpdated, map[string]any{"bad": make(chan int)}, "u1", "", time.Now())
	if err == nil {
		t.Fatal("NewEnvelope() should fail for an unmarshalable payload")
	}
	if !strings.Contains(err.Error(), "task_updated") {
		t.Errorf("error %q should name the message type", err)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantErr     bool
		wantType    MessageType
		wantProject string
		wantUser    string
	}{
		{
			name:        "full frame",
			data:        `{"type":"user_joined","payload":{"userId":"u2"},"userId":"u2","projectId":"p1","timestamp":1700000000000}`,
			wantType:    TypeUserJoined,
			wantProject: "p1",
			wantUser:    "u2",
		},
		{
			name:     "null project",
			data:     `{"type":"pong","payload":{},"userId":"","projectId":null,"timestamp":0}`,
			wantType: TypePong,
		},
		{
			name:    "missing type",
			data:    `{"payload":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatal("DecodeEnvelope() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeEnvelope() error: %v", err)
			}
			if env.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", env.Type, tt.wantType)
			}
			if env.Project() != tt.wantProject {
				t.Errorf("Project() = %q, want %q", env.Project(), tt.wantProject)
			}
			if env.UserID != tt.wantUser {
				t.Errorf("UserID = %q, want %q", env.UserID, tt.wantUser)
			}
		})
	}
}

func TestEnvelopeTimeAndDecode(t *testing.T) {
	data := `{"type":"collaborative_edit","payload":{"editType":"update","elementId":"e1","changes":{"title":"x"}},"userId":"u2","projectId":"p1","timestamp":1700000000500}`
	env, err := DecodeEnvelope([]byte(data))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error: %v", err)
	}

	if got := env.Time().UnixMilli(); got != 1_700_000_000_500 {
		t.Errorf("Time() = %d ms, want 1700000000500", got)
	}

	var edit EditPayload
	if err := env.Decode(&edit); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if edit.ElementID != "e1" || edit.EditType != "update" || edit.Changes["title"] != "x" {
		t.Errorf("Decode() = %+v", edit)
	}
}

func TestMessageTypeEventName(t *testing.T) {
	tests := []struct {
		msgType MessageType
		want    event.Name
		ok      bool
	}{
		{TypeProjectUpdated, event.NameProjectUpdated, true},
		{TypeTaskUpdated, event.NameTaskUpdated, true},
		{TypeWorkflowUpdated, event.NameWorkflowUpdated, true},
		{TypeUserJoined, event.NameUserJoined, true},
		{TypeUserLeft, event.NameUserLeft, true},
		{TypeCollaborativeEdit, event.NameCollaborativeEdit, true},
		{TypeConflictDetected, event.NameConflictDetected, true},
		{TypeNotification, event.NameNotification, true},
		{TypeNotificationRead, event.NameNotificationRead, true},
		{TypeNotificationDeleted, event.NameNotificationDeleted, true},
		{TypeUnreadCountUpdated, event.NameUnreadCountUpdated, true},
		{TypeUserStatusChanged, event.NameUserStatusChanged, true},
		{TypeTypingIndicator, event.NameTypingIndicator, true},
		{TypePong, "", false},
		{TypePing, "", false},
		{TypeJoinProject, "", false},
		{MessageType("made_up"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.msgType.String(), func(t *testing.T) {
			got, ok := tt.msgType.EventName()
			if ok != tt.ok || got != tt.want {
				t.Errorf("EventName() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPayloadFieldNames(t *testing.T) {
	b, err := json.Marshal(ConflictPayload{ElementID: "e1", ConflictType: "locked_element", With: "u2"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"elementId":"e1","conflictType":"locked_element","with":"u2"}`
	if string(b) != want {
		t.Errorf("ConflictPayload JSON = %s, want %s", b, want)
	}

	b, err = json.Marshal(UpdatePayload{TaskID: "t1", UpdateType: "status"})
	if err != nil {
		t.Fatal(err)
	}
	want = `{"taskId":"t1","updateType":"status"}`
	if string(b) != want {
		t.Errorf("UpdatePayload JSON = %s, want %s", b, want)
	}
}
