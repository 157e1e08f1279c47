package encoding

import "testing"

func TestToUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"empty", nil, ""},
		{"plain ascii", []byte("  Guarana 2L "), "Guarana 2L"},
		{"already utf8", []byte("Açúcar"), "Açúcar"},
		{"win1252 accents", []byte{'A', 0xE7, 0xFA, 'c', 'a', 'r'}, "Açúcar"},
		{"win1252 currency", []byte{'R', '$', ' ', 0x80}, "R$ €"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToUTF8(tt.input); got != tt.want {
				t.Errorf("ToUTF8(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	if got := SanitizeText(" Bebidas  "); got != "Bebidas" {
		t.Errorf("got %q, want trimmed", got)
	}
	mangled := string([]byte{'C', 'a', 'f', 0xE9})
	if got := SanitizeText(mangled); got != "Café" {
		t.Errorf("got %q, want Café", got)
	}
}
