package jsonx

import "testing"

type verdictDoc struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

func TestExtractObject(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    verdictDoc
		wantErr bool
	}{
		{
			name: "clean document",
			raw:  `{"result":"적격","reason":"경비 항목 일치"}`,
			want: verdictDoc{Result: "적격", Reason: "경비 항목 일치"},
		},
		{
			name: "markdown fenced",
			raw:  "```json\n{\"result\":\"INELIGIBLE\",\"reason\":\"category mismatch\"}\n```",
			want: verdictDoc{Result: "INELIGIBLE", Reason: "category mismatch"},
		},
		{
			name: "surrounding prose",
			raw:  "Here is my assessment:\n{\"result\":\"ELIGIBLE\",\"reason\":\"ok\"}\nLet me know if you need more.",
			want: verdictDoc{Result: "ELIGIBLE", Reason: "ok"},
		},
		{
			name: "braces inside strings",
			raw:  `{"result":"ELIGIBLE","reason":"matched {feed} line"}`,
			want: verdictDoc{Result: "ELIGIBLE", Reason: "matched {feed} line"},
		},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "no object", raw: "cannot determine", wantErr: true},
		{name: "unterminated", raw: `{"result":"ELIGIBLE"`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got verdictDoc
			err := ExtractObject(tc.raw, &got)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v got %+v", tc.want, got)
			}
		})
	}
}
