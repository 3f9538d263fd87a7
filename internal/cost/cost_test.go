package cost

import "testing"

func TestParseRate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{"empty is zero", "", 0, false},
		{"whole dollars", "3", 30_000_000, false},
		{"cents", "0.30", 3_000_000, false},
		{"sub-cent", "0.075", 750_000, false},
		{"bare fraction", ".5", 5_000_000, false},
		{"full precision", "1.2345678", 12_345_678, false},
		{"too many decimals", "0.00000001", 0, true},
		{"not a number", "abc", 0, true},
		{"negative", "-1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name           string
		prompt         int64
		thought        int64
		output         int64
		inRate         string
		outRate        string
		want           string
	}{
		{
			// 1000 in at $0.075/M plus 2000 out at $0.30/M.
			name:   "gemini flash rates",
			prompt: 1000, output: 2000,
			inRate: "0.075", outRate: "0.30",
			want: "$0.000675",
		},
		{
			name:   "thought tokens billed as output",
			prompt: 1000, thought: 1000, output: 1000,
			inRate: "0.075", outRate: "0.30",
			want: "$0.000675",
		},
		{
			name:   "zero rates",
			prompt: 50_000, output: 9_000,
			inRate: "", outRate: "",
			want: "$0.00",
		},
		{
			name:   "whole dollars keep two fraction digits",
			prompt: 1_000_000, output: 0,
			inRate: "3", outRate: "15",
			want: "$3.00",
		},
		{
			name:   "dollars and cents",
			prompt: 1_000_000, output: 100_000,
			inRate: "3.00", outRate: "15.00",
			want: "$4.50",
		},
		{
			name:   "zero tokens",
			inRate: "0.075", outRate: "0.30",
			want: "$0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(tt.prompt, tt.thought, tt.output, tt.inRate, tt.outRate)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Calculate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCalculateBadRate(t *testing.T) {
	if _, err := Calculate(1, 0, 1, "oops", "0.30"); err == nil {
		t.Error("Calculate() should reject an unparseable input rate")
	}
	if _, err := Calculate(1, 0, 1, "0.075", "oops"); err == nil {
		t.Error("Calculate() should reject an unparseable output rate")
	}
}
