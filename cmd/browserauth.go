package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/sputnik/internal/services"
	"github.com/desertthunder/sputnik/internal/shared"
	"github.com/urfave/cli/v3"
)

// browserAuthCommand drives catalog B's browser-cookie bootstrap: it sends
// the raw request headers copied from an authenticated YouTube Music browser
// session to the FastAPI proxy's setup endpoint via [services.APIService],
// then writes the returned auth content to the cookie file catalogB.cookieFile
// names, so acquireCommand's premium-tier quality path picks it up.
func browserAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "browser-auth",
		Usage: "Bootstrap catalog B cookie auth from raw browser request headers",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "headers-file",
				Usage:    "Path to a file containing the raw request headers copied from the browser",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")

			config, err := loadConfig(path)
			if err != nil {
				return err
			}

			rawHeaders, err := os.ReadFile(cmd.String("headers-file"))
			if err != nil {
				return fmt.Errorf("read headers file: %w", err)
			}

			api := services.NewAPIService(config.CatalogB.ProxyURL, nil)

			resp, err := api.SetupBrowser(ctx, string(rawHeaders))
			if err != nil {
				return shared.NewCatalogBError("browser setup", err)
			}
			if !resp.Success {
				return shared.NewCatalogBError("browser setup", fmt.Errorf("%s", resp.Message))
			}

			cookiePath := config.CatalogB.CookieFile
			if cookiePath == "" {
				cookiePath = resp.Filepath
			}
			if cookiePath == "" {
				return shared.NewConfigError("catalogB.cookieFile", fmt.Errorf("proxy did not return a filepath and none is configured"))
			}

			authBytes, err := json.MarshalIndent(resp.AuthContent, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal auth content: %w", err)
			}
			if err := os.WriteFile(cookiePath, authBytes, 0600); err != nil {
				return fmt.Errorf("write cookie file: %w", err)
			}

			config.CatalogB.CookieFile = cookiePath
			if err := shared.SaveConfig(path, config); err != nil {
				return shared.NewConfigError(path, err)
			}

			fmt.Printf("catalog B cookie auth saved to %s\n", cookiePath)
			return nil
		},
	}
}
