// Package installer hands downloaded APKs to an external command.
package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Installer = (*ExecInstaller)(nil)

// ExecInstaller runs a command with the APK path appended as the last
// argument, for example "adb install -r".
type ExecInstaller struct {
	name string
	args []string
}

// NewExecInstaller parses a whitespace-separated command line. It returns an
// error when commandLine is blank.
func NewExecInstaller(commandLine string) (*ExecInstaller, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, errors.New("installer command is empty")
	}
	return &ExecInstaller{name: fields[0], args: fields[1:]}, nil
}

// Install runs the command and waits for it to exit.
func (i *ExecInstaller) Install(ctx context.Context, apkPath string) error {
	if _, err := os.Stat(apkPath); err != nil {
		return fmt.Errorf("apk file: %w", err)
	}

	args := append(append([]string{}, i.args...), apkPath)
	cmd := exec.CommandContext(ctx, i.name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("starting installer", "command", i.name, "apk", apkPath)

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("run %s: %w: %s", i.name, err, msg)
		}
		return fmt.Errorf("run %s: %w", i.name, err)
	}

	return nil
}
