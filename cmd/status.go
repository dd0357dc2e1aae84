package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"portalpass/internal/config"
	"portalpass/internal/netid"
	"portalpass/internal/reach"
)

const portalPageLimit = 64 << 10

var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the WiFi network, internet and portal reachability without logging in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		prober := reach.NewProber(log)
		id := netid.NewProbe(cfg.WifiInterface, log).Current(cmd.Context())
		printStatus(cmd.Context(), cmd.OutOrStdout(), cfg, id, prober)
		return nil
	},
}

func printStatus(ctx context.Context, out io.Writer, cfg config.Config, id netid.Identity, prober *reach.Prober) {
	target := "no"
	if id.SSID == cfg.SSID {
		target = "yes"
	}
	fmt.Fprintf(out, "network:  %s (campus network: %s)\n", id, target)

	internet := reach.Endpoint{Name: "internet", URL: cfg.InternetURL, WantStatus: cfg.InternetStatus}
	fmt.Fprintf(out, "internet: %s\n", prober.Check(ctx, internet, cfg.ProbeTimeout))

	portalEP := reach.Endpoint{Name: "portal", URL: cfg.PortalURL}
	page, err := prober.Fetch(ctx, portalEP, cfg.ProbeTimeout, portalPageLimit)
	if err != nil {
		fmt.Fprintf(out, "portal:   unreachable: %v\n", err)
		return
	}
	fmt.Fprintf(out, "portal:   reachable (HTTP %d)\n", page.Status)
	if page.LooksHTML {
		if title := pageTitle(page.Body); title != "" {
			fmt.Fprintf(out, "title:    %s\n", title)
		}
	}
}

// pageTitle returns the document title, falling back to the first heading.
func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1, h2").First().Text())
	}
	return strings.Join(strings.Fields(title), " ")
}
