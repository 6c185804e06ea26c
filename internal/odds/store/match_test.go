package store

import "testing"

func TestMatchParticipants(t *testing.T) {
	tests := []struct {
		name         string
		participants []string
		fragments    []string
		want         bool
	}{
		{
			name:         "fragment inside stored name",
			participants: []string{"Kansas City Chiefs", "Buffalo Bills"},
			fragments:    []string{"Kansas City"},
			want:         true,
		},
		{
			name:         "stored name inside fragments",
			participants: []string{"Ajax"},
			fragments:    []string{"Ajax", "Amsterdam"},
			want:         true,
		},
		{
			name:         "case insensitive",
			participants: []string{"BUFFALO BILLS"},
			fragments:    []string{"buffalo bills"},
			want:         true,
		},
		{
			name:         "no overlap",
			participants: []string{"Kansas City Chiefs", "Buffalo Bills"},
			fragments:    []string{"Miami Dolphins"},
			want:         false,
		},
		{
			name:         "empty fragments never match",
			participants: []string{"Kansas City Chiefs"},
			fragments:    nil,
			want:         false,
		},
		{
			name:         "empty participants never match",
			participants: nil,
			fragments:    []string{"Kansas City"},
			want:         false,
		},
		{
			name:         "blank participant ignored",
			participants: []string{"", "Buffalo Bills"},
			fragments:    []string{"Buffalo"},
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchParticipants(tt.participants, tt.fragments); got != tt.want {
				t.Errorf("matchParticipants(%v, %v) = %v, want %v", tt.participants, tt.fragments, got, tt.want)
			}
		})
	}
}

// A heurística é propositalmente frouxa: um nome armazenado curto casa com
// qualquer fragmento que o contenha. Este teste fixa o falso positivo em vez
// de apertar o matching, já que apertar muda comportamento observável.
func TestMatchParticipantsShortNameFalsePositive(t *testing.T) {
	if !matchParticipants([]string{"FC"}, []string{"Liverpool FC"}) {
		t.Error("short stored name inside fragments should match (documented false positive)")
	}
	if !matchParticipants([]string{"United"}, []string{"Newcastle United"}) {
		t.Error("overlapping suffix should match (documented false positive)")
	}
}
