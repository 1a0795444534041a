package cli

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatiitd/chatterm/internal/session"
)

var (
	loginTimeout   time.Duration
	loginNoBrowser bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in via the configured OAuth provider",
	Long: `Sign in via the configured OAuth provider.

Opens the provider's sign-in page in your browser and catches the redirect
on a local listener. The received authorization code is exchanged for an
access token, which is persisted for later commands.

Requires CHATTERM_OAUTH_CLIENT_ID and CHATTERM_OAUTH_REDIRECT_URL (or the
matching config-file keys) to be set.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().DurationVar(&loginTimeout, "timeout", 3*time.Minute, "how long to wait for the sign-in redirect")
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "print the sign-in address instead of opening a browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Missing configuration blocks login before anything navigates.
	signinURL, err := sess.LoginURL()
	if err != nil {
		return err
	}

	redirect, err := url.Parse(cfg.OAuthRedirectURL)
	if err != nil {
		return fmt.Errorf("parse redirect address: %w", err)
	}

	paramsCh := make(chan session.CallbackParams, 1)
	srv, err := startCallbackServer(redirect, paramsCh)
	if err != nil {
		return err
	}
	defer srv.Close()

	if loginNoBrowser {
		fmt.Printf("Open this address in your browser to sign in:\n\n  %s\n\n", signinURL)
	} else {
		fmt.Println("Opening the sign-in page in your browser...")
		if err := openBrowser(signinURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
			fmt.Printf("Could not open a browser. Open this address manually:\n\n  %s\n\n", signinURL)
		}
	}
	fmt.Println("Waiting for the sign-in redirect...")

	var params session.CallbackParams
	select {
	case params = <-paramsCh:
	case <-time.After(loginTimeout):
		return fmt.Errorf("timed out after %s waiting for the sign-in redirect", loginTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := sess.Bootstrap(ctx, params); err != nil {
		return fmt.Errorf("bootstrap session: %w", err)
	}

	state, errMsg := sess.Snapshot()
	if state != session.StateAuthenticated {
		return fmt.Errorf("sign-in failed: %s", errMsg)
	}
	fmt.Println("Logged in.")
	return nil
}

// startCallbackServer listens on the redirect address and forwards the
// first OAuth callback it receives.
func startCallbackServer(redirect *url.URL, paramsCh chan<- session.CallbackParams) (*http.Server, error) {
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on redirect address %s: %w", redirect.Host, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		params, _ := session.ParseCallback(r.URL)
		if !params.HasCode() {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body><p>Signed in. You can close this tab and return to the terminal.</p></body></html>")

		select {
		case paramsCh <- params:
		default:
		}
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Warn("callback server stopped", "error", err)
		}
	}()
	return srv, nil
}

// openBrowser launches the platform browser at u.
func openBrowser(u string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", u).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", u).Start()
	default:
		return exec.Command("xdg-open", u).Start()
	}
}
