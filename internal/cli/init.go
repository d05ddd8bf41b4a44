package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/policy"
)

var (
	initMode  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.amiengine) or system (/etc/amiengine)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap amiengine configuration",
	Long: `Creates the config directory with a commented default config.yaml and an
empty profiles directory.

User mode (default):  writes to ~/.amiengine/
System mode:          writes to /etc/amiengine/ (requires root)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}

	var created []string

	profilesDir := filepath.Join(dir, "profiles")
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		return fmt.Errorf("create profiles directory: %w", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	if wrote, err := writeIfMissing(configPath, policy.DefaultConfigYAML()); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	out := os.Stdout
	fmt.Fprintln(out, "amiengine init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, path := range created {
			fmt.Fprintf(out, "  %s\n", path)
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite).")
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Verify:")
	if initMode == "system" {
		fmt.Fprintf(out, "  amiengine certify --config %s\n", configPath)
	} else {
		fmt.Fprintln(out, "  amiengine certify")
	}
	return nil
}

// configDir returns the configuration directory based on --mode.
func configDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/amiengine", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".amiengine"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
