package netid

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

const netshOutput = `
There is 1 interface on the system:

    Name                   : Wi-Fi
    Description            : Intel(R) Wi-Fi 6 AX201 160MHz
    State                  : connected
    SSID                   : CAMPUS CONNECT AUS
    BSSID                  : a4:6c:2a:11:22:33
    Network type           : Infrastructure
`

func TestParsers(t *testing.T) {
	tests := []struct {
		name   string
		parse  func(string) string
		input  string
		expect string
	}{
		{name: "netsh connected", parse: ParseNetsh, input: netshOutput, expect: "CAMPUS CONNECT AUS"},
		{name: "netsh crlf", parse: ParseNetsh, input: "    SSID                   : Home Net\r\n    BSSID : x\r\n", expect: "Home Net"},
		{name: "netsh disconnected", parse: ParseNetsh, input: "    State : disconnected\n    BSSID : aa\n", expect: ""},
		{name: "nmcli active", parse: ParseNmcli, input: "no:Neighbour\nyes:CAMPUS CONNECT AUS\n", expect: "CAMPUS CONNECT AUS"},
		{name: "nmcli escaped colon", parse: ParseNmcli, input: `yes:Cafe\:Guest` + "\n", expect: "Cafe:Guest"},
		{name: "nmcli none active", parse: ParseNmcli, input: "no:A\nno:B\n", expect: ""},
		{name: "networksetup", parse: ParseNetworksetup, input: "Current Wi-Fi Network: OtherNet\n", expect: "OtherNet"},
		{name: "networksetup off", parse: ParseNetworksetup, input: "You are not associated with an AirPort network.\n", expect: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.parse(tc.input); got != tc.expect {
				t.Fatalf("expected %q, got %q", tc.expect, got)
			}
		})
	}
}

func TestProbeCurrent(t *testing.T) {
	var gotName string
	var gotArgs []string
	p := &Probe{
		GOOS: "windows",
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotName, gotArgs = name, args
			return []byte(netshOutput), nil
		},
		Log: zerolog.Nop(),
	}

	id := p.Current(context.Background())
	if !id.Known() || id.SSID != "CAMPUS CONNECT AUS" {
		t.Fatalf("unexpected identity %v", id)
	}
	if gotName != "netsh" || !reflect.DeepEqual(gotArgs, []string{"wlan", "show", "interfaces"}) {
		t.Fatalf("unexpected command %s %v", gotName, gotArgs)
	}
}

func TestProbeCurrentDarwinInterface(t *testing.T) {
	var gotArgs []string
	p := &Probe{
		GOOS:      "darwin",
		Interface: "en1",
		Run: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			gotArgs = args
			return []byte("Current Wi-Fi Network: X\n"), nil
		},
		Log: zerolog.Nop(),
	}
	if id := p.Current(context.Background()); id.SSID != "X" {
		t.Fatalf("unexpected identity %v", id)
	}
	if gotArgs[len(gotArgs)-1] != "en1" {
		t.Fatalf("expected interface en1, got %v", gotArgs)
	}
}

func TestProbeFailuresYieldNone(t *testing.T) {
	calls := 0
	failing := func(context.Context, string, ...string) ([]byte, error) {
		calls++
		return nil, errors.New("exec: \"netsh\": executable file not found")
	}

	p := &Probe{GOOS: "windows", Run: failing, Log: zerolog.Nop()}
	if id := p.Current(context.Background()); id.Known() {
		t.Fatalf("expected none on command failure, got %v", id)
	}
	if calls != 1 {
		t.Fatalf("expected a single query without retry, got %d", calls)
	}

	p = &Probe{GOOS: "plan9", Run: failing, Log: zerolog.Nop()}
	if id := p.Current(context.Background()); id.Known() || id.String() != "none" {
		t.Fatalf("expected none on unsupported platform, got %v", id)
	}
	if calls != 1 {
		t.Fatalf("unsupported platform must not run a command")
	}
}
