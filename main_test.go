package main

import "testing"

func TestParseArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		daemon  bool
		wantErr bool
	}{
		{name: "no arguments runs once", args: nil, daemon: false},
		{name: "daemon argument", args: []string{"daemon"}, daemon: true},
		{name: "unknown argument", args: []string{"serve"}, wantErr: true},
		{name: "too many arguments", args: []string{"daemon", "extra"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			daemon, err := parseArgs(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %v", tc.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %v: %v", tc.args, err)
			}
			if daemon != tc.daemon {
				t.Fatalf("parse %v = %v, want %v", tc.args, daemon, tc.daemon)
			}
		})
	}
}
