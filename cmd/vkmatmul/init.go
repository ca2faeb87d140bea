package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/vkmatmul/fixtures"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a commented config file to the config path",
		Action: func(c *cli.Context) error {
			path := c.App.Metadata["configPath"].(string)
			if err := writeTemplate(path); err != nil {
				return err
			}
			loggerFrom(c).Info("Config written", zap.String("path", path))
			return nil
		},
	}
}

// writeTemplate creates path from the embedded template. An existing file
// is never overwritten.
func writeTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("config %s already exists", path)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(fixtures.ConfigTemplate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
