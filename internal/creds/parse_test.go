package creds

import "testing"

func TestParseSecretOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare secret", "glpat-abc123\n", "glpat-abc123", false},
		{"leading blank lines", "\n\n  glpat-abc123  \n", "glpat-abc123", false},
		{"multi line takes first", "first-secret\nsecond-line\n", "first-secret", false},
		{"json token field", `{"token":"tok-1"}`, "tok-1", false},
		{"json access_token field", `{"access_token":"abc"}`, "abc", false},
		{"json password field", `{"password":"pw"}`, "pw", false},
		{"token beats access_token", `{"access_token":"second","token":"first"}`, "first", false},
		{"access_token beats password", `{"password":"third","access_token":"second"}`, "second", false},
		{"json without recognized field", `{"username":"bob"}`, "", true},
		{"json with empty field", `{"token":""}`, "", true},
		{"invalid json falls back to plain text", `{not json`, "{not json", false},
		{"empty output", "", "", true},
		{"whitespace only", "  \n\t\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSecretOutput([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSecretOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSecretOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}
