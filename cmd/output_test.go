package cmd

import (
	"testing"
)

func TestParseVector(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []float32
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"blank", "   ", nil, false},
		{"single", "0.5", []float32{0.5}, false},
		{"spaces", " 0.1, -0.2 ,3", []float32{0.1, -0.2, 3}, false},
		{"invalid", "0.1,abc", nil, true},
		{"trailing comma", "0.1,", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVector(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseVector(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseVector(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("component %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseID("event", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseID(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParticipantLabel(t *testing.T) {
	id := int64(7)
	if got := participantLabel(nil, ""); got != "-" {
		t.Errorf("nil participant = %q, want -", got)
	}
	if got := participantLabel(&id, ""); got != "#7" {
		t.Errorf("unnamed participant = %q, want #7", got)
	}
	if got := participantLabel(&id, "Gabriela Nunes"); got != "Gabriela Nunes (#7)" {
		t.Errorf("named participant = %q", got)
	}
}
