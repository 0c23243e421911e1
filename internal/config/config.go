package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Root           string        `mapstructure:"root"`
	Extension      string        `mapstructure:"extension"`
	Exclude        []string      `mapstructure:"exclude"`
	GuardWindow    int           `mapstructure:"guard_window"`
	MutationWindow int           `mapstructure:"mutation_window"`
	DryRun         bool          `mapstructure:"dry_run"`
	Verbose        bool          `mapstructure:"verbose"`
	PostHook       string        `mapstructure:"post_hook"`
	Shell          string        `mapstructure:"shell"`
	IconSource     string        `mapstructure:"icon_source"`
	IconDir        string        `mapstructure:"icon_dir"`
	IconSizes      []int         `mapstructure:"icon_sizes"`
	WatchDebounce  time.Duration `mapstructure:"watch_debounce"`
	ColorSuccess   string        `mapstructure:"color_success"`
	ColorSkip      string        `mapstructure:"color_skip"`
	ColorError     string        `mapstructure:"color_error"`
	ColorSummary   string        `mapstructure:"color_summary"`
}

// C is the global config instance
var C Config

// Init initializes configuration with viper. An explicit file, if given,
// replaces the search path.
func Init(file string) error {
	viper.SetDefault("root", "api")
	viper.SetDefault("extension", ".js")
	viper.SetDefault("exclude", []string{"__pycache__", "node_modules"})
	viper.SetDefault("guard_window", 5)
	viper.SetDefault("mutation_window", 30)
	viper.SetDefault("dry_run", false)
	viper.SetDefault("verbose", false)
	viper.SetDefault("post_hook", "")
	viper.SetDefault("shell", getDefaultShell())
	viper.SetDefault("icon_source", filepath.Join("public", "app-icon.jpg"))
	viper.SetDefault("icon_dir", "public")
	viper.SetDefault("icon_sizes", []int{192, 512})
	viper.SetDefault("watch_debounce", 500*time.Millisecond)
	viper.SetDefault("color_success", "32") // Green
	viper.SetDefault("color_skip", "90")    // Gray
	viper.SetDefault("color_error", "31")   // Red
	viper.SetDefault("color_summary", "36") // Cyan

	if file != "" {
		viper.SetConfigFile(expandTilde(file))
	} else {
		viper.SetConfigName("cachebust")
		viper.SetConfigType("yaml")

		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "cachebust"))
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("CACHEBUST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file on the search path is fine, a named one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && file != "" {
			return err
		}
	}

	return viper.Unmarshal(&C)
}

// GetRoot returns the directory scanned for handler files, with tilde expansion
func GetRoot() string {
	return expandTilde(viper.GetString("root"))
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetExtension returns the file extension that selects handler files
func GetExtension() string {
	return viper.GetString("extension")
}

// GetExclude returns path substrings that exclude a file
func GetExclude() []string {
	return viper.GetStringSlice("exclude")
}

// GetGuardWindow returns how many lines are checked for an existing block
func GetGuardWindow() int {
	return viper.GetInt("guard_window")
}

// GetMutationWindow returns how many lines are checked for a request verb
func GetMutationWindow() int {
	return viper.GetInt("mutation_window")
}

// GetDryRun returns whether files should be left unwritten
func GetDryRun() bool {
	return viper.GetBool("dry_run")
}

// GetVerbose returns whether debug logging is enabled
func GetVerbose() bool {
	return viper.GetBool("verbose")
}

// GetPostHook returns the command run after files were modified
func GetPostHook() string {
	return viper.GetString("post_hook")
}

// GetShell returns the shell
func GetShell() string {
	return viper.GetString("shell")
}

// GetIconSource returns the source image path
func GetIconSource() string {
	return expandTilde(viper.GetString("icon_source"))
}

// GetIconDir returns the directory icons are written to
func GetIconDir() string {
	return expandTilde(viper.GetString("icon_dir"))
}

// GetIconSizes returns the square icon sizes in pixels
func GetIconSizes() []int {
	return viper.GetIntSlice("icon_sizes")
}

// GetWatchDebounce returns how long watch mode waits for writes to settle
func GetWatchDebounce() time.Duration {
	return viper.GetDuration("watch_debounce")
}

// GetColorSuccess returns ANSI color code for modified files
func GetColorSuccess() string {
	return viper.GetString("color_success")
}

// GetColorSkip returns ANSI color code for unchanged files
func GetColorSkip() string {
	return viper.GetString("color_skip")
}

// GetColorError returns ANSI color code for errors
func GetColorError() string {
	return viper.GetString("color_error")
}

// GetColorSummary returns ANSI color code for the summary
func GetColorSummary() string {
	return viper.GetString("color_summary")
}

// SetRoot sets root at runtime
func SetRoot(path string) {
	viper.Set("root", path)
	C.Root = path
}

// SetIconSource sets the source image at runtime
func SetIconSource(path string) {
	viper.Set("icon_source", path)
	C.IconSource = path
}

func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}
