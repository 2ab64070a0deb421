package smoketest

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"uplinkhub/internal/config"
	"uplinkhub/pkg/models"
)

// narrator prints the human progress story on stdout.
// The wording follows the profile's exit convention.
type narrator struct {
	w       io.Writer
	profile Profile
	ok      *color.Color
	bad     *color.Color
	dim     *color.Color
}

func newNarrator(w io.Writer, p Profile) *narrator {
	return &narrator{
		w:       w,
		profile: p,
		ok:      paint(w, color.FgGreen),
		bad:     paint(w, color.FgRed),
		dim:     paint(w, color.FgHiBlack),
	}
}

// paint only colours real terminal output, color.NoColor covers the tty check
func paint(w io.Writer, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if f, ok := w.(*os.File); !ok || f != os.Stdout {
		c.DisableColor()
	}
	return c
}

func (n *narrator) abort() bool {
	return n.profile.Convention == AbortOnFailure
}

func (n *narrator) missingKey() {
	if n.abort() {
		n.bad.Fprintf(n.w, "Error: %s environment variable not set\n", config.EnvUplinkKey)
		return
	}
	n.bad.Fprintf(n.w, "ERROR: %s environment variable not set\n", config.EnvUplinkKey)
}

func (n *narrator) connecting() {
	fmt.Fprintln(n.w, "Connecting to Anvil via Uplink...")
}

func (n *narrator) connected() {
	if n.abort() {
		n.ok.Fprintln(n.w, "Connected to Anvil")
		return
	}
	n.ok.Fprintln(n.w, "SUCCESS: Connected to Anvil")
}

func (n *narrator) calling() {
	if n.abort() {
		fmt.Fprintf(n.w, "\nCalling %s()...\n", n.profile.Procedure)
		return
	}
	fmt.Fprintln(n.w, "Testing server function call...")
}

func (n *narrator) result(r *models.ConnectionResult) {
	if n.abort() {
		n.ok.Fprintln(n.w, "\nTest successful!")
	} else {
		n.ok.Fprintln(n.w, "SUCCESS: Server function call worked")
	}

	if n.profile.Verbose {
		fmt.Fprintf(n.w, "   Status: %s\n", r.Status)
		fmt.Fprintf(n.w, "   Message: %s\n", r.Message)
		fmt.Fprintf(n.w, "   Timestamp: %s\n", r.Timestamp)
		fmt.Fprintf(n.w, "   Module: %s\n", r.ServerModule)
	} else {
		fmt.Fprintf(n.w, "Message: %s\n", r.Message)
	}

	if !n.abort() {
		n.ok.Fprintln(n.w, "Uplink is WORKING!")
	}
}

func (n *narrator) failed(err error) {
	if n.abort() {
		n.bad.Fprintf(n.w, "\nTest failed: %v\n", err)
		return
	}
	n.bad.Fprintf(n.w, "FAILED: %v\n", err)
}

func (n *narrator) disconnecting() {
	if n.abort() {
		n.dim.Fprintln(n.w, "\nDisconnecting...")
	}
}

func (n *narrator) disconnected() {
	if n.abort() {
		n.dim.Fprintln(n.w, "Disconnected")
		return
	}
	n.ok.Fprintln(n.w, "SUCCESS: Disconnected from Anvil")
}

func (n *narrator) complete() {
	if n.abort() {
		n.ok.Fprintln(n.w, "\nUplink test complete!")
	}
}

// hold-mode lines
func (n *narrator) holdConnected() {
	n.ok.Fprintln(n.w, "✓ Connected to Anvil")
}

func (n *narrator) holdPrompt() {
	fmt.Fprint(n.w, "\nPress Enter to disconnect...")
}

func (n *narrator) holdDisconnected() {
	n.ok.Fprintln(n.w, "✓ Disconnected from Anvil")
}
