package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/amiengine/internal/policy"
	"github.com/ppiankov/amiengine/internal/profile"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileCheckCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileKeysCmd)
	profileCmd.AddCommand(profileInitCmd)
	profileCmd.AddCommand(profileDiffCmd)
	profileDiffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	profileInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing profile file")
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage threshold profiles",
	Long:  "List, check, inspect and create named threshold profiles layered over the config.",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available profiles",
	RunE:  runProfileList,
}

var profileCheckCmd = &cobra.Command{
	Use:   "check <name>",
	Short: "Validate a profile loads and applies cleanly",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileCheck,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile's overrides and the resulting values",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every override key with its value in the current config",
	RunE:  runProfileKeys,
}

var profileInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Write a starter profile to ~/.amiengine/profiles/<name>.yaml",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileInit,
}

var profileDiffCmd = &cobra.Command{
	Use:   "diff <old> <new>",
	Short: "Compare two profiles (alias for diff)",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	names := profile.List()
	if len(names) == 0 {
		fmt.Fprintln(out, "No profiles available.")
		return nil
	}

	fmt.Fprintln(out, "Available profiles:")
	for _, name := range names {
		p, err := profile.Load(name)
		if err != nil {
			fmt.Fprintf(out, "  %-16s (error loading: %v)\n", name, err)
			continue
		}
		fmt.Fprintf(out, "  %-16s %s\n", name, p.Description)
	}
	return nil
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	name := args[0]
	p, err := profile.Load(name)
	if err != nil {
		return fmt.Errorf("failed to load profile %q: %w", name, err)
	}

	if err := profile.Validate(p); err != nil {
		return fmt.Errorf("profile %q is invalid: %w", name, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Profile %q is valid: %d overrides.\n", p.Name, len(p.Overrides.Values()))
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p, err := profile.Load(args[0])
	if err != nil {
		return err
	}
	base, err := policy.LoadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := profile.ApplyToConfig(p, base)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Profile: %s (%s)\n\n", p.Name, p.Description)
	values := p.Overrides.Values()
	if len(values) == 0 {
		fmt.Fprintln(out, "  no overrides")
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		was, _ := base.Get(k)
		now, _ := cfg.Get(k)
		fmt.Fprintf(out, "  %-32s %g → %g\n", k, was, now)
	}
	return nil
}

func runProfileKeys(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	for _, k := range policy.Keys() {
		v, _ := cfg.Get(k)
		fmt.Fprintf(cmd.OutOrStdout(), "  %-32s %g\n", k, v)
	}
	return nil
}

func runProfileInit(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid profile name %q", name)
	}
	dir, err := configDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "profiles", name+".yaml")
	wrote, err := writeIfMissing(path, profile.InitProfile(name))
	if err != nil {
		return err
	}
	if !wrote {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}
