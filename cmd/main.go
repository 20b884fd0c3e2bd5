package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"keyring-sa/multi-keyring/cipher"
	"keyring-sa/multi-keyring/config"
	"keyring-sa/multi-keyring/keyring"
	"keyring-sa/multi-keyring/materials"
	"keyring-sa/multi-keyring/metrics"
)

func main() {
	app := &cli.App{
		Name:  "mkr",
		Usage: "envelope encryption with composable keyrings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.ConfigPathFlag,
				Usage:   "config file",
				Aliases: []string{"c"},
				Value:   config.DefaultConfigPath,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "encrypt",
				Usage: "encrypt a file under every configured keyring",
				Flags: fileFlags(),
				Action: func(cliCtx *cli.Context) error {
					return runWithApp(cliCtx, runEncrypt)
				},
			},
			{
				Name:  "decrypt",
				Usage: "decrypt an envelope by trying each configured keyring",
				Flags: fileFlags(),
				Action: func(cliCtx *cli.Context) error {
					return runWithApp(cliCtx, runDecrypt)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func fileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "in",
			Usage:    "input file",
			Aliases:  []string{"i"},
			Required: true,
		},
		&cli.StringFlag{
			Name:     "out",
			Usage:    "output file",
			Aliases:  []string{"o"},
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:    "context",
			Usage:   "encryption context entry as key=value, repeatable",
			Aliases: []string{"e"},
		},
	}
}

// runWithApp assembles the stack, starts the lifecycle (metrics endpoint)
// and hands the wired cipher to the command
func runWithApp(cliCtx *cli.Context, fn func(ctx context.Context, cliCtx *cli.Context, c *cipher.Cipher, logger *zap.Logger) error) error {
	var (
		envCipher *cipher.Cipher
		logger    *zap.Logger
	)

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cliCtx),
		fx.Provide(newLogger),
		config.Module,
		metrics.Module,
		keyring.Module,
		cipher.Module,
		fx.Populate(&envCipher, &logger),
	)

	if err := app.Err(); err != nil {
		return err
	}

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(ctx)

	return fn(ctx, cliCtx, envCipher, logger)
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func runEncrypt(ctx context.Context, cliCtx *cli.Context, c *cipher.Cipher, logger *zap.Logger) error {
	plaintext, err := os.ReadFile(cliCtx.String("in"))
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	encryptionContext, err := parseContext(cliCtx.StringSlice("context"))
	if err != nil {
		return err
	}

	envelope, err := c.Encrypt(ctx, &cipher.EncryptInput{
		Plaintext:         plaintext,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return err
	}

	data, err := envelope.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(cliCtx.String("out"), data, 0600); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}

	logger.Info("encrypted",
		zap.String("out", cliCtx.String("out")),
		zap.Int("encrypted_data_keys", len(envelope.EncryptedDataKeys)),
	)
	return nil
}

func runDecrypt(ctx context.Context, cliCtx *cli.Context, c *cipher.Cipher, logger *zap.Logger) error {
	data, err := os.ReadFile(cliCtx.String("in"))
	if err != nil {
		return fmt.Errorf("failed to read envelope: %w", err)
	}

	envelope, err := cipher.UnmarshalEnvelope(data)
	if err != nil {
		return err
	}

	plaintext, err := c.Decrypt(ctx, &cipher.DecryptInput{Envelope: envelope})
	if err != nil {
		return err
	}

	if err := os.WriteFile(cliCtx.String("out"), plaintext, 0600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	logger.Info("decrypted", zap.String("out", cliCtx.String("out")))
	return nil
}

func parseContext(entries []string) (materials.EncryptionContext, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	ec := make(materials.EncryptionContext, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid context entry %q, expected key=value", entry)
		}
		ec[key] = value
	}
	return ec, nil
}
