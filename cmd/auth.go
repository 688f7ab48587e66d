package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/sputnik/internal/server"
	"github.com/desertthunder/sputnik/internal/services"
	"github.com/desertthunder/sputnik/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 5 * time.Minute

// authCommand drives catalog A's OAuth2 authorization-code handshake: it
// starts a localhost callback server, prints the authorization URL for the
// user to open in a browser, waits for the redirect, exchanges the code for
// a token, and writes both tokens back into the config file. Every other
// command reads the saved token instead of repeating this handshake.
func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize against catalog A and save the resulting token",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")

			config, err := loadConfig(path)
			if err != nil {
				return err
			}

			client, err := services.NewSpotifyClient(map[string]string{
				"client_id":     config.CatalogA.ClientID,
				"client_secret": config.CatalogA.ClientSecret,
				"redirect_uri":  config.CatalogA.RedirectURI,
			})
			if err != nil {
				return shared.NewCatalogAError("construct client", err, false)
			}

			addr, err := callbackAddr(config.CatalogA.RedirectURI)
			if err != nil {
				return shared.NewConfigError("catalogA.redirectUri", err)
			}

			state, err := randomState()
			if err != nil {
				return fmt.Errorf("generate state: %w", err)
			}

			handler := server.NewOAuthHandler(client.Config(), state)
			router := server.NewBasicRouter()
			router.Handler(handler)

			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return shared.NewCatalogAError("listen", err, false)
			}

			httpServer := &http.Server{Handler: router}
			go httpServer.Serve(listener)
			defer httpServer.Shutdown(context.Background())

			fmt.Printf("open this URL to authorize, then return here:\n\n%s\n\n", client.GetAuthURL(state))

			select {
			case result := <-handler.Result():
				if result.Error() != nil {
					return shared.NewCatalogAError("authorize", result.Error(), true)
				}

				config.CatalogA.AccessToken = result.Token.AccessToken
				config.CatalogA.RefreshToken = result.Token.RefreshToken

				if err := shared.SaveConfig(path, config); err != nil {
					return shared.NewConfigError(path, err)
				}

				fmt.Println("authorization saved")
				return nil
			case <-time.After(authTimeout):
				return shared.NewCatalogAError("authorize", fmt.Errorf("timed out waiting for callback"), true)
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// callbackAddr derives a listen address from a redirect URI's host and port,
// defaulting to port 8080 when the URI names none.
func callbackAddr(redirectURI string) (string, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("parse redirect uri: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := parsed.Port()
	if port == "" {
		port = "8080"
	}

	return net.JoinHostPort(host, port), nil
}

// randomState generates a CSRF state token for the authorization request.
func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
