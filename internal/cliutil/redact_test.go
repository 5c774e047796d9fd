package cliutil

import "testing"

func TestRedactCommandLine(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain command untouched",
			in:   "ls -la /tmp",
			want: "ls -la /tmp",
		},
		{
			name: "template reference",
			in:   "deploy --target ${PROD_HOST}",
			want: "deploy --target ${[redacted]}",
		},
		{
			name: "secret flag with equals",
			in:   "curl --token=abc123 https://example.com",
			want: "curl --token=[redacted] https://example.com",
		},
		{
			name: "secret flag with space",
			in:   "psql --password hunter2 -h db",
			want: "psql --password [redacted] -h db",
		},
		{
			name: "env style assignment",
			in:   "env DB_PASSWORD=hunter2 ./migrate",
			want: "env DB_PASSWORD=[redacted] ./migrate",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RedactCommandLine(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
