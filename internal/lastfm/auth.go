package lastfm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

// AuthCallbackPort is where the local callback server listens. Register
// http://localhost:9847/callback as the API account's callback URL.
const AuthCallbackPort = 9847

// AuthServer receives the browser redirect at the end of the web
// authorization flow and hands the token back over a channel.
type AuthServer struct {
	server    *http.Server
	tokenChan chan string
	done      chan struct{}
}

// StartAuthServer binds the callback listener. Fails when the port is
// taken, in which case the caller falls back to the pending token.
func StartAuthServer() (*AuthServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", AuthCallbackPort))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", AuthCallbackPort, err)
	}

	as := &AuthServer{
		tokenChan: make(chan string, 1),
		done:      make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", as.handleCallback)
	as.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = as.server.Serve(listener)
		close(as.done)
	}()

	return as, nil
}

func (as *AuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	w.Header().Set("Content-Type", "text/html")
	if token != "" {
		writeResultPage(w, "All set", "drift is linked to your Last.fm account. You can close this tab.")
	} else {
		writeResultPage(w, "Something went wrong", "Last.fm did not send a token. Run the link command again.")
	}

	select {
	case as.tokenChan <- token:
	default:
	}
}

func writeResultPage(w http.ResponseWriter, heading, body string) {
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>drift</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
<h1>%s</h1>
<p>%s</p>
</body>
</html>`, heading, body)
}

// TokenChan delivers the token from the callback. An empty string means
// the callback arrived without one.
func (as *AuthServer) TokenChan() <-chan string {
	return as.tokenChan
}

// Shutdown stops the callback server and waits for it to exit.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// OpenBrowser opens url in the platform's default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
