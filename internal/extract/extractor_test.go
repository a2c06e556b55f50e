package extract

import "testing"

func TestDocumentText(t *testing.T) {
	d := &Document{Pages: []Page{
		{Number: 1, Text: "page one"},
		{Number: 2, Text: "page two"},
	}}
	got := d.Text()
	want := "page one" + PageBreak + "page two"
	if got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		totalChars int
		pages      int
		min        int
		want       Classification
	}{
		{"dense text", 5000, 2, 100, Digital},
		{"sparse text", 150, 3, 100, Scanned},
		{"exactly at threshold", 100, 1, 100, Digital},
		{"just below threshold", 99, 1, 100, Scanned},
		{"empty layers", 0, 5, 100, Scanned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.totalChars, tt.pages, tt.min)
			if got != tt.want {
				t.Errorf("classify(%d, %d, %d) = %v, want %v",
					tt.totalChars, tt.pages, tt.min, got, tt.want)
			}
		})
	}
}
