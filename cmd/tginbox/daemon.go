package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const (
	launchdLabel = "com.tginbox.run"
	systemdUnit  = "tginbox.service"
)

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install 'tginbox run' as a user service (launchd/systemd)",
		Long:  "Generates a service file that starts 'tginbox run' at login and restarts it on failure.",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			cfgPath, err := filepath.Abs(resolveConfigPath())
			if err != nil {
				return err
			}

			switch runtime.GOOS {
			case "darwin":
				return installLaunchd(execPath, cfgPath)
			case "linux":
				return installSystemd(execPath, cfgPath)
			default:
				return fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
			}
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the tginbox user service",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch runtime.GOOS {
			case "darwin":
				return removeServiceFile(launchdPath())
			case "linux":
				return removeServiceFile(systemdPath())
			default:
				return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
			}
		},
	}
}

func launchdPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
}

func systemdPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "systemd", "user", systemdUnit)
}

// renderService fills the service template placeholders.
func renderService(tmpl, execPath, cfgPath, logDir string) string {
	return strings.NewReplacer(
		"{{EXEC}}", execPath,
		"{{CONFIG}}", cfgPath,
		"{{LABEL}}", launchdLabel,
		"{{LOG}}", filepath.Join(logDir, "tginbox.log"),
		"{{ERR_LOG}}", filepath.Join(logDir, "tginbox-error.log"),
	).Replace(tmpl)
}

func installLaunchd(execPath, cfgPath string) error {
	logDir := filepath.Join(filepath.Dir(cfgPath), "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	plistPath := launchdPath()
	if err := writeServiceFile(plistPath, renderService(launchdTemplate, execPath, cfgPath, logDir)); err != nil {
		return err
	}
	fmt.Printf("Service installed: %s\n", plistPath)
	fmt.Printf("To start: launchctl load %s\n", plistPath)
	fmt.Printf("To stop:  launchctl unload %s\n", plistPath)
	return nil
}

func installSystemd(execPath, cfgPath string) error {
	unitPath := systemdPath()
	if err := writeServiceFile(unitPath, renderService(systemdTemplate, execPath, cfgPath, "")); err != nil {
		return err
	}
	fmt.Printf("Service installed: %s\n", unitPath)
	fmt.Printf("To start:  systemctl --user start tginbox\n")
	fmt.Printf("To enable: systemctl --user enable tginbox\n")
	fmt.Printf("To stop:   systemctl --user stop tginbox\n")
	return nil
}

func writeServiceFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func removeServiceFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove service file: %w", err)
	}
	fmt.Printf("Service uninstalled: %s\n", path)
	return nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{LABEL}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{EXEC}}</string>
        <string>run</string>
        <string>--config</string>
        <string>{{CONFIG}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{LOG}}</string>
    <key>StandardErrorPath</key>
    <string>{{ERR_LOG}}</string>
</dict>
</plist>`

const systemdTemplate = `[Unit]
Description=tginbox Telegram to Obsidian inbox
After=network-online.target

[Service]
Type=simple
ExecStart={{EXEC}} run --config {{CONFIG}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target`
