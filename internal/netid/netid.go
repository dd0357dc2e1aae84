// Package netid reports which wireless network the host is associated with.
package netid

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// Identity names the joined wireless network. The zero value means none.
type Identity struct {
	SSID string
}

func (i Identity) Known() bool { return i.SSID != "" }

func (i Identity) String() string {
	if !i.Known() {
		return "none"
	}
	return i.SSID
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Probe queries the OS once per call. GOOS and Run are overridable for tests.
type Probe struct {
	GOOS      string
	Interface string // darwin only; defaults to en0
	Run       Runner
	Log       zerolog.Logger
}

func NewProbe(iface string, log zerolog.Logger) *Probe {
	return &Probe{
		GOOS:      runtime.GOOS,
		Interface: iface,
		Run:       execRunner,
		Log:       log.With().Str("component", "netid").Logger(),
	}
}

// Current returns the associated network. Query failures yield the none
// identity; callers only ever compare the SSID.
func (p *Probe) Current(ctx context.Context) Identity {
	q, ok := p.query()
	if !ok {
		p.Log.Debug().Str("goos", p.goos()).Msg("no wifi query for this platform")
		return Identity{}
	}

	run := p.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, q.name, q.args...)
	if err != nil {
		p.Log.Debug().Err(err).Str("command", q.name).Msg("wifi query failed")
		return Identity{}
	}

	id := Identity{SSID: q.parse(string(out))}
	p.Log.Debug().Str("ssid", id.String()).Msg("wifi query done")
	return id
}

type query struct {
	name  string
	args  []string
	parse func(string) string
}

func (p *Probe) goos() string {
	if p.GOOS == "" {
		return runtime.GOOS
	}
	return p.GOOS
}

func (p *Probe) query() (query, bool) {
	switch p.goos() {
	case "windows":
		return query{name: "netsh", args: []string{"wlan", "show", "interfaces"}, parse: ParseNetsh}, true
	case "linux":
		return query{name: "nmcli", args: []string{"-t", "-f", "active,ssid", "dev", "wifi"}, parse: ParseNmcli}, true
	case "darwin":
		iface := strings.TrimSpace(p.Interface)
		if iface == "" {
			iface = "en0"
		}
		return query{name: "networksetup", args: []string{"-getairportnetwork", iface}, parse: ParseNetworksetup}, true
	}
	return query{}, false
}

var netshSSID = regexp.MustCompile(`(?m)^[ \t]*SSID[ \t]*:[ \t]*(.*?)[ \t\r]*$`)

// ParseNetsh extracts the SSID from `netsh wlan show interfaces`. The BSSID
// line is not matched.
func ParseNetsh(out string) string {
	m := netshSSID.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseNmcli reads terse `nmcli -t -f active,ssid dev wifi` output and returns
// the SSID of the active row. nmcli escapes ':' inside fields as '\:'.
func ParseNmcli(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		active, ssid, ok := strings.Cut(line, ":")
		if !ok || active != "yes" {
			continue
		}
		ssid = strings.ReplaceAll(ssid, `\:`, ":")
		ssid = strings.ReplaceAll(ssid, `\\`, `\`)
		return strings.TrimSpace(ssid)
	}
	return ""
}

const airportPrefix = "Current Wi-Fi Network:"

// ParseNetworksetup handles `networksetup -getairportnetwork <iface>`.
func ParseNetworksetup(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, airportPrefix); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
