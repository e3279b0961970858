package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/faucetdb/warden/internal/model"
	"github.com/faucetdb/warden/internal/service"
)

func newLoginCmd() *cobra.Command {
	var (
		username    string
		idToken     string
		accessToken string
		code        string
		redirect    string
		client      string
		ip          string
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log an admin in and issue a session token",
		Long: `Authenticate an admin with a password or a federated identity payload and
issue a session token bound to --ip.

Pass --username for a password login (the password is prompted), or one of
--id-token, --access-token or --code for a federated login. --code redeems an
authorization code using the redirect URI registered under --redirect.`,
		Example: `  warden login --username admin@example.com --ip 203.0.113.7
  warden login --id-token "$ID_TOKEN" --client android --ip 203.0.113.7
  warden login --code "$CODE" --redirect admin --ip 203.0.113.7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			var req model.LoginRequest
			switch {
			case username != "":
				password, err := readPassword("Password: ")
				if err != nil {
					return err
				}
				req.User = &model.PasswordCredentials{Username: username, Password: password}
			case code != "":
				if a.resolver == nil {
					return service.ErrIncorrectGoogleToken
				}
				tok, err := a.resolver.ExchangeCodeForTokens(ctx, code, redirect)
				if err != nil {
					a.logger.Warn("authorization code exchange failed", "error", err)
					return service.ErrIncorrectGoogleToken
				}
				creds := &model.FederatedCredentials{AccessToken: tok.AccessToken}
				if raw, ok := tok.Extra("id_token").(string); ok && raw != "" {
					creds = &model.FederatedCredentials{Credential: raw}
				}
				req.Google = creds
			case idToken != "" || accessToken != "":
				req.Google = &model.FederatedCredentials{
					Credential:  idToken,
					AccessToken: accessToken,
					Client:      client,
				}
			}

			resp, err := a.login.Login(ctx, req, ip)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, resp)
			}
			fmt.Fprintln(out, resp.Token)
			fmt.Fprintf(out, "# %s, level %d, expires %s\n", resp.Email, resp.Level, resp.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			if a.cfg.Auth.SessionBackend == "memory" || a.store == nil {
				a.logger.Warn("session tokens are held in memory and end with this process")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Admin email for a password login")
	cmd.Flags().StringVar(&idToken, "id-token", "", "Signed ID token from the identity provider")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth access token from the identity provider")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code to redeem")
	cmd.Flags().StringVar(&redirect, "redirect", "", "Redirect context the code was issued for")
	cmd.Flags().StringVar(&client, "client", "", "Registered client that issued the ID token")
	cmd.Flags().StringVar(&ip, "ip", "127.0.0.1", "Client IP the session is bound to")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.MarkFlagsMutuallyExclusive("username", "id-token", "code")
	cmd.MarkFlagsMutuallyExclusive("username", "access-token", "code")
	cmd.MarkFlagsRequiredTogether("code", "redirect")

	return cmd
}
