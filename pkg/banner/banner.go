package banner

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"vouchd/pkg/config"
)

const banner = `
██╗   ██╗ ██████╗ ██╗   ██╗ ██████╗██╗  ██╗██████╗
██║   ██║██╔═══██╗██║   ██║██╔════╝██║  ██║██╔══██╗
██║   ██║██║   ██║██║   ██║██║     ███████║██║  ██║
╚██╗ ██╔╝██║   ██║██║   ██║██║     ██╔══██║██║  ██║
 ╚████╔╝ ╚██████╔╝╚██████╔╝╚██████╗██║  ██║██████╔╝
  ╚═══╝   ╚═════╝  ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═════╝
`

// PrintWithEff prints the startup banner with the effective config and
// the counts restored from the snapshot.
func PrintWithEff(eff config.EffectiveConfigResult, version string, subjects, entries int) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("Storage:  %s (%s)\n", eff.DBPath, eff.Config.Storage.Backend)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	fmt.Printf("Ledger:   %s subjects, %s entries restored\n",
		humanize.Comma(int64(subjects)), humanize.Comma(int64(entries)))

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/events/message          - submit a chat message event")
	fmt.Println("POST /v1/events/message-deleted  - submit a message-deleted event")
	fmt.Println("GET  /v1/subjects/{id}/count     - vouch count for a subject")
	fmt.Println("GET  /v1/top?n=10                - top subjects by vouch count")

	fmt.Println("\n== Production? =================================================")
	be := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for the platform connector)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}
	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if eff.Config == nil || eff.Config.Platform.Token == "" {
		fmt.Println("- Platform token: MISSING (role sync and eligibility will fail)")
	} else {
		fmt.Println("- Platform token: OK")
	}
}
