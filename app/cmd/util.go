package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lexcodex/codebase/framework"
	"github.com/lexcodex/codebase/framework/inspect"
	"github.com/lexcodex/codebase/internal/runtime"
)

// openRuntime builds a runtime from the loaded config, logging to the
// command's stderr at the given base level.
func openRuntime(cmd *cobra.Command, base slog.Level) (*runtime.Runtime, error) {
	return openRuntimeTo(cmd, cmd.ErrOrStderr(), base)
}

func openRuntimeTo(cmd *cobra.Command, stderr io.Writer, base slog.Level) (*runtime.Runtime, error) {
	return runtime.New(cmd.Context(), cfg, runtime.Options{
		Stderr: stderr,
		Level:  logLevel(base),
	})
}

// interactive reports whether w is a terminal the progress UI can drive.
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// plainSink prints run progress as log-style lines.
type plainSink struct {
	w io.Writer
}

func (s plainSink) OnStart(runID string) {
	fmt.Fprintf(s.w, "scan %s started\n", runID)
}

func (s plainSink) OnUpdate(stage inspect.Stage, state inspect.State) {
	switch stage {
	case inspect.StageFetchingLines:
		fmt.Fprintf(s.w, "found %s files\n", humanize.Comma(int64(state.All)))
	case inspect.StageProgress2:
		fmt.Fprintf(s.w, "projects %d/%d\n", state.Used, state.All)
	}
}

func (s plainSink) OnComplete(inspect.Result) {}

// sortedExtensions returns extension keys ordered by lines, largest first.
func sortedExtensions(ext map[string]framework.CodeVolume) []string {
	keys := make([]string, 0, len(ext))
	for k := range ext {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := ext[keys[i]], ext[keys[j]]
		if a.Lines != b.Lines {
			return a.Lines > b.Lines
		}
		return keys[i] < keys[j]
	})
	return keys
}

func lastScan(p framework.Project) string {
	if p.LastEdit.IsZero() {
		return "never"
	}
	return humanize.Time(p.LastEdit)
}

func visibility(public bool) string {
	if public {
		return "public"
	}
	return "private"
}

// readConfigMap deserializes config.yaml into a generic map for dotted lookups.
func readConfigMap(path string) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	bytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(bytes, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// writeConfigMap persists the config map back to YAML, creating directories.
// The map must still decode into a valid Config.
func writeConfigMap(path string, data map[string]interface{}) error {
	bytes, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	check := runtime.DefaultConfig()
	if err := yaml.Unmarshal(bytes, &check); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0o644)
}

// getConfigValue traverses a nested map using dotted notation.
func getConfigValue(data map[string]interface{}, key string) (interface{}, bool) {
	var current interface{} = data
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		value, ok := m[part]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

// setConfigValue mutates/creates nested keys referenced via dotted notation.
func setConfigValue(data map[string]interface{}, key string, value interface{}) error {
	parts := strings.Split(key, ".")
	current := data
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("invalid key %q", key)
		}
		if i == len(parts)-1 {
			current[part] = value
			return nil
		}
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[part] = next
		}
		current = next
	}
	return nil
}

// parseValue coerces CLI input into bool/int/float or a comma list before
// storing. Durations such as "10m" stay strings.
func parseValue(input string) interface{} {
	if b, err := strconv.ParseBool(input); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(input, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(input, 64); err == nil {
		return f
	}
	if strings.HasPrefix(input, "[") && strings.HasSuffix(input, "]") {
		inner := strings.TrimSpace(input[1 : len(input)-1])
		items := []interface{}{}
		if inner != "" {
			for _, item := range strings.Split(inner, ",") {
				items = append(items, strings.TrimSpace(item))
			}
		}
		return items
	}
	return input
}

// prettyValue renders nested values in a human-readable one-line format.
func prettyValue(v interface{}) string {
	switch value := v.(type) {
	case []interface{}:
		var parts []string
		for _, item := range value {
			parts = append(parts, prettyValue(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]interface{}:
		b, _ := yaml.Marshal(value)
		return strings.TrimSpace(string(b))
	default:
		return fmt.Sprint(value)
	}
}
