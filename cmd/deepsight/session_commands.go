package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jrsteele09/deepsight-client/api"
	dserrors "github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/users"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func healthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := a.api.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, msg)
			return nil
		},
	}
}

func registerCommand(a *app) *cobra.Command {
	var reg users.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a DeepSight account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if reg.Email, err = a.valueOrPrompt(reg.Email, "Email: "); err != nil {
				return err
			}
			if reg.Username, err = a.valueOrPrompt(reg.Username, "Username: "); err != nil {
				return err
			}
			if reg.Password, err = a.valueOrPrompt(reg.Password, "Password: "); err != nil {
				return err
			}
			if reg.ConfirmPassword, err = a.valueOrPrompt(reg.ConfirmPassword, "Confirm password: "); err != nil {
				return err
			}
			if err := a.validator.ValidateRegistration(reg); err != nil {
				return err
			}

			msg, err := a.api.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, msg)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&reg.Email, "email", "", "email address")
	flags.StringVar(&reg.Username, "username", "", "username")
	flags.StringVar(&reg.Password, "password", "", "password (prompted when empty)")
	flags.StringVar(&reg.ConfirmPassword, "confirm-password", "", "password confirmation (prompted when empty)")
	flags.StringVar(&reg.FirstName, "first-name", "", "first name")
	flags.StringVar(&reg.LastName, "last-name", "", "last name")
	return cmd
}

func loginCommand(a *app) *cobra.Command {
	var creds users.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if creds.Username, err = a.valueOrPrompt(creds.Username, "Username: "); err != nil {
				return err
			}
			if creds.Password, err = a.valueOrPrompt(creds.Password, "Password: "); err != nil {
				return err
			}
			if err := a.validator.ValidateLogin(creds); err != nil {
				if errors.Is(err, dserrors.ErrWeakPassword) {
					// No account can have a password that fails the rules.
					fmt.Fprintln(a.out, "Incorrect password")
					return dserrors.ErrIncorrectPassword
				}
				return err
			}

			res := a.session.Login(cmd.Context(), creds)
			if !res.OK() {
				return api.NewError(res)
			}
			fmt.Fprintf(a.out, "Logged in as %s\n", creds.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func logoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if res := a.session.Logout(cmd.Context()); !res.OK() {
				log.Warn().Err(res.Error()).Msg("Server side logout failed, local session cleared")
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func statusCommand(a *app) *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var statusErr error
			a.session.IsAuthenticated(ctx,
				func() {
					fmt.Fprintln(a.out, "Authenticated")
					if s := a.session.Session(ctx); s.Authenticated(time.Now()) {
						fmt.Fprintf(a.out, "Token expires %s (in %s)\n", s.Expiry.Local().Format(time.RFC1123), time.Until(s.Expiry).Round(time.Second))
					}
				},
				func() {
					fmt.Fprintln(a.out, "Not authenticated")
					statusErr = errNotAuthenticated
				},
			)
			if statusErr != nil || !verify {
				return statusErr
			}

			if res := a.session.VerifyToken(ctx); !res.OK() {
				return api.NewError(res)
			}
			fmt.Fprintln(a.out, "Token verified by the server")
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "also ask the server to verify the token")
	return cmd
}

func watchCommand(a *app) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check the session periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			displayAppname(a.out, a.config.GetAppName())

			if metricsAddr != "" {
				server := &http.Server{Addr: metricsAddr, Handler: metricsHandler()}
				go listenAndServe(server)
				defer func() {
					if err := shutdown(server); err != nil {
						log.Warn().Err(err).Msg("Error stopping metrics server")
					}
				}()
			}

			if interval <= 0 {
				interval = a.config.GetRevalidateInterval()
			}
			log.Info().Dur("interval", interval).Msg("Watching session")

			stop := a.session.Watch(ctx, interval,
				func() { log.Info().Msg("Session active") },
				func() {
					log.Warn().Msg("Session expired, please log in again")
					cancel()
				},
			)
			defer stop()

			<-ctx.Done()
			if cmd.Context().Err() == nil {
				return errNotAuthenticated
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "re-check interval (default from DEEPSIGHT_REVALIDATE_INTERVAL)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	return cmd
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Metrics server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func profileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.api.Profile(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s>\nUsername: %s\n", u.DisplayName(), u.Email, u.Username)
			return nil
		},
	}
}

func settingsCommand(a *app) *cobra.Command {
	var theme string
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change user settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				s   *users.Settings
				err error
			)
			if theme != "" {
				s, err = a.api.UpdateSettings(cmd.Context(), users.Settings{Theme: users.Theme(theme)})
			} else {
				s, err = a.api.Settings(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Theme: %s\n", s.Theme)
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "set the theme: light, dark or systemdefault")
	return cmd
}

var errNotAuthenticated = errors.New("not authenticated, run \"deepsight login\"")
