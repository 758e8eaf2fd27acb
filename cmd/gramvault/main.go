// The gramvault command wraps the development workflows this repository
// supports: running the binaries, running the test suite, smoke-testing a
// live standalone server, and cleaning up local archive state.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "gramvault: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gramvault",
		Short: "GramVault development CLI",
		Long: `GramVault CLI wraps common development workflows: launching the binaries,
running the test suite, smoke-testing a standalone server end to end, and
cleaning up local archive state.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newRunCmd(),
		newTestCmd(),
		newSmokeCmd(),
		newCleanCmd(),
	)
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one of the GramVault binaries",
	}
	for _, name := range []string{"server", "api", "worker"} {
		name := name
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "go run ./cmd/" + name,
			RunE: func(cmd *cobra.Command, args []string) error {
				goArgs := append([]string{"run", "./cmd/" + name}, args...)
				return runCommand(cmd.Context(), "go", goArgs...)
			},
		})
	}
	return cmd
}

func newTestCmd() *cobra.Command {
	var race, cover bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), "go", goTestArgs(args, race, cover)...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable the Go race detector")
	cmd.Flags().BoolVar(&cover, "cover", false, "Collect coverage data")
	return cmd
}

func goTestArgs(pkgs []string, race, cover bool) []string {
	args := []string{"test"}
	if race {
		args = append(args, "-race")
	}
	if cover {
		args = append(args, "-cover")
	}
	if len(pkgs) == 0 {
		pkgs = []string{"./..."}
	}
	return append(args, pkgs...)
}

func newSmokeCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Boot a throwaway standalone server and exercise its HTTP surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSmoke(cmd.Context(), addr, timeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8090", "Address the throwaway server listens on")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the server to come up")
	return cmd
}

// runSmoke starts ./cmd/server against a temp work dir, then walks the auth
// and validation paths that do not depend on reaching Instagram.
func runSmoke(ctx context.Context, addr string, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workDir, err := os.MkdirTemp("", "gramvault-smoke-*")
	if err != nil {
		return fmt.Errorf("allocate work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	const password = "smoke-access-code"
	server := exec.CommandContext(ctx, "go", "run", "./cmd/server")
	server.Env = append(os.Environ(),
		"GRAMVAULT_PASSWORD="+password,
		"GRAMVAULT_ADDRESS="+addr,
		"GRAMVAULT_WORK_DIR="+workDir,
	)
	server.Stdout = os.Stdout
	server.Stderr = os.Stderr
	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	defer func() {
		cancel()
		_ = server.Wait()
	}()

	base := "http://" + addr
	if err := waitHealthy(ctx, base, timeout); err != nil {
		return err
	}
	token, err := validateAccess(base, password)
	if err != nil {
		return err
	}
	if err := checkRejections(base, token); err != nil {
		return err
	}
	fmt.Println("smoke: all checks passed")
	return nil
}

func waitHealthy(ctx context.Context, base string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server at %s not healthy after %s", base, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func validateAccess(base, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"password": password})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(base+"/auth/validate", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("validate password: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("validate password: status %d", resp.StatusCode)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("validate password: empty token")
	}
	return payload.Token, nil
}

func checkRejections(base, token string) error {
	resp, err := http.Post(base+"/download/create", "application/json",
		strings.NewReader(`{"sourceUrl":"https://instagram.com/alice"}`))
	if err != nil {
		return fmt.Errorf("unauthenticated create: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("unauthenticated create: status %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodPost, base+"/download/create",
		strings.NewReader(`{"sourceUrl":"https://example.com/alice"}`))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("invalid create: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("invalid create: status %d, want 400", resp.StatusCode)
	}
	return nil
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the local archive work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := os.Getenv("GRAMVAULT_WORK_DIR")
			if dir == "" {
				dir = filepath.Join(os.TempDir(), "gramvault")
			}
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("remove %s: %w", dir, err)
			}
			fmt.Printf("removed %s\n", dir)
			return nil
		},
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
