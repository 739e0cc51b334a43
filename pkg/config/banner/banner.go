package banner

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"fastbridge/pkg/config"
)

const banner = `
███████╗ █████╗ ███████╗████████╗██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗
██╔════╝██╔══██╗██╔════╝╚══██╔══╝██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
█████╗  ███████║███████╗   ██║   ██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗
██╔══╝  ██╔══██║╚════██║   ██║   ██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝
██║     ██║  ██║███████║   ██║   ██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗
╚═╝     ╚═╝  ╚═╝╚══════╝   ╚═╝   ╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝
`

// PrintWithEff writes the banner and a summary of the effective config.
func PrintWithEff(w io.Writer, eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	addr := eff.Addr
	if addr == "" {
		addr = cfg.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintf(w, "Listen:   %s\n", addr)
	fmt.Fprintf(w, "Name:     %s\n", cfg.Server.Name)
	if version != "" {
		fmt.Fprintf(w, "Version:  %s\n", version)
	}
	fmt.Fprintf(w, "Config:   %s\n", src)

	fmt.Fprintln(w, "\n== Bridge =====================================================")
	fmt.Fprintf(w, "- Mode: %s\n", cfg.Bridge.Mode)
	fmt.Fprintf(w, "- Chunk size: %s\n", humanize.IBytes(uint64(cfg.Bridge.ChunkSize)))
	fmt.Fprintf(w, "- Max request body: %s\n", humanize.IBytes(uint64(cfg.Server.MaxRequestBodySize)))
	if cfg.StreamRequestBody() {
		fmt.Fprintln(w, "- Request bodies: streamed")
	} else {
		fmt.Fprintln(w, "- Request bodies: buffered")
	}
	if cfg.ForwardPeerAddr() {
		fmt.Fprintln(w, "- Peer address: forwarded")
	} else {
		fmt.Fprintln(w, "- Peer address: hidden")
	}

	fmt.Fprintln(w, "\n== Production? =================================================")
	if cfg.RateLimit.RPS > 0 {
		fmt.Fprintf(w, "- Rate limit: %s rps (burst %s)\n", humanize.Ftoa(cfg.RateLimit.RPS), humanize.Comma(int64(cfg.RateLimit.Burst)))
	} else {
		fmt.Fprintln(w, "- Rate limit: disabled")
	}
	if cfg.Telemetry.Enabled {
		fmt.Fprintf(w, "- Tracing: enabled (%s)\n", cfg.Telemetry.OTLPEndpoint)
	} else {
		fmt.Fprintln(w, "- Tracing: disabled")
	}
	fmt.Fprintln(w)
}
