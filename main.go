package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/statelit/statelit/internal/classify"
	"github.com/statelit/statelit/internal/compare"
	"github.com/statelit/statelit/internal/config"
	"github.com/statelit/statelit/internal/errors"
	"github.com/statelit/statelit/internal/expr"
	"github.com/statelit/statelit/internal/extract"
	"github.com/statelit/statelit/internal/values"
)

// Version information
const Version = "0.1.0"

// CLI defines the command-line interface
var CLI struct {
	Config  string           `help:"Path to a statelit config file. Discovered upward from the working directory if not set." type:"path"`
	Version kong.VersionFlag `help:"Show version information." short:"V"`

	Serialize SerializeCmd `cmd:"" help:"Render a JSON state document as a literal expression."`
	Extract   ExtractCmd   `cmd:"" help:"Reconstruct literal values from an expression and emit JSON."`
	Compare   CompareCmd   `cmd:"" help:"Compare a current and a desired JSON state document."`
}

// SerializeCmd renders a JSON document as a literal expression.
type SerializeCmd struct {
	Input   string `help:"Path to input JSON file. If not specified, reads from stdin." short:"i" type:"path"`
	Output  string `help:"Path to output file. If not specified, writes to stdout." short:"o" type:"path"`
	Depth   int    `help:"Maximum rendering depth; deeper subtrees become the placeholder literal." default:"-1"`
	Expand  int    `help:"Expansion threshold: depth beyond which containers render inline." default:"-2"`
	Compact bool   `help:"Render everything inline with no spaces." short:"c"`
	Strong  bool   `help:"Emit type-cast annotations for round-trip fidelity." short:"s"`
	Explore bool   `help:"Suppress type casts; structural inspection output."`
	Spaces  int    `help:"Indent with this many spaces instead of a tab." default:"0"`
}

// Run executes the serialize command
func (cmd *SerializeCmd) Run(cfg *config.Config) error {
	data, err := readInput(cmd.Input)
	if err != nil {
		return err
	}
	state, err := values.DecodeJSONString(data)
	if err != nil {
		return errors.NewInputError("input is not valid JSON", err)
	}

	ctx := renderContext(cfg)
	if cmd.Depth >= 0 {
		ctx.MaxDepth = cmd.Depth
	}
	if cmd.Expand > -2 {
		ctx.Expand = cmd.Expand
	}
	if cmd.Compact {
		ctx.Expand = -1
	}
	if cmd.Spaces > 0 {
		ctx.IndentChar = ' '
		ctx.IndentUnit = cmd.Spaces
	}
	ctx.Strong = ctx.Strong || cmd.Strong
	ctx.Explore = ctx.Explore || cmd.Explore

	ser := expr.New(classify.New(cfg.KeyName))
	return writeOutput(cmd.Output, ser.Serialize(state, ctx)+"\n")
}

// ExtractCmd reconstructs literal values from an expression fragment.
type ExtractCmd struct {
	Input  string `help:"Path to input expression file. If not specified, reads from stdin." short:"i" type:"path"`
	Output string `help:"Path to output JSON file. If not specified, writes to stdout." short:"o" type:"path"`
}

// Run executes the extract command
func (cmd *ExtractCmd) Run(cfg *config.Config) error {
	data, err := readInput(cmd.Input)
	if err != nil {
		return err
	}
	lits, err := extract.ExtractString(data)
	if err != nil {
		return err
	}

	// A single argument unwraps; multiple arguments emit as a JSON array.
	var out any
	if len(lits) == 1 {
		out = lits[0].Interface()
	} else {
		items := make([]any, len(lits))
		for i, lit := range lits {
			items[i] = lit.Interface()
		}
		out = items
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.NewOutputError("failed to encode extracted literals", err)
	}
	return writeOutput(cmd.Output, string(encoded)+"\n")
}

// CompareCmd compares two JSON state documents.
type CompareCmd struct {
	Current string `arg:"" help:"Path to the current state JSON file." type:"path"`
	Desired string `arg:"" help:"Path to the desired state JSON file." type:"path"`

	Properties    []string `help:"Restrict comparison to these properties." short:"p"`
	Exclude       []string `help:"Exclude these properties from comparison." short:"x"`
	SkipTypeCheck bool     `help:"Compare values without checking runtime types."`
	SortArrays    bool     `help:"Sort arrays on both sides before element-wise comparison."`
	Reverse       bool     `help:"Also compare desired against current and AND the verdicts."`
	Verbose       bool     `help:"Emit one trace line per compared key." short:"v"`
	Quiet         bool     `help:"Suppress the verdict line; rely on the exit code." short:"q"`
}

// Run executes the compare command
func (cmd *CompareCmd) Run(cfg *config.Config) error {
	current, err := readStateFile(cmd.Current)
	if err != nil {
		return err
	}
	desired, err := readStateFile(cmd.Desired)
	if err != nil {
		return err
	}

	opts := compare.Options{
		RestrictTo:    cmd.Properties,
		Exclude:       append(cfg.Compare.Exclude, cmd.Exclude...),
		SkipTypeCheck: cmd.SkipTypeCheck || cfg.Compare.SkipTypeCheck,
		SortArrays:    cmd.SortArrays || cfg.Compare.SortArrays,
		Reverse:       cmd.Reverse || cfg.Compare.Reverse,
	}

	log := zap.NewNop()
	if cmd.Verbose || cfg.Dev.Verbose {
		log = traceLogger()
	}

	equal, err := compare.New(compare.DefaultCatalog(), log).Equal(current, desired, opts)
	if err != nil {
		return err
	}

	if !cmd.Quiet {
		if equal {
			fmt.Println("in desired state")
		} else {
			fmt.Println("not in desired state")
		}
	}
	if !equal {
		return errors.ErrNotInDesiredState
	}
	return nil
}

func main() {
	parser := kong.Must(&CLI,
		kong.Name("statelit"),
		kong.Description("Round-trip structured state through literal expressions and compare property bags."),
		kong.UsageOnError(),
		kong.Vars{"version": fmt.Sprintf("statelit version %s", Version)},
	)

	ctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		// Usage is already shown by kong.UsageOnError()
		os.Exit(2)
	}

	cfg, err := loadConfig(CLI.Config)
	if err == nil {
		err = ctx.Run(cfg)
	}
	if err != nil {
		// The mismatch verdict is an exit code, not an error message.
		if stderrors.Is(err, errors.ErrNotInDesiredState) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(2)
	}
}

// loadConfig loads the named config file, or discovers one, or falls back to
// defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}
	if found := config.FindConfigFile(); found != "" {
		return config.LoadConfig(found)
	}
	return config.NewConfig(), nil
}

// renderContext maps config settings onto a rendering context.
func renderContext(cfg *config.Config) expr.Context {
	ctx := expr.DefaultContext()
	ctx.MaxDepth = cfg.Rendering.MaxDepth
	ctx.Expand = cfg.Rendering.ExpandThreshold
	ctx.IndentUnit = cfg.Rendering.IndentUnit
	ctx.IndentChar = cfg.IndentRune()
	ctx.Newline = cfg.NewlineString()
	ctx.Strong = cfg.Rendering.Strong
	ctx.Explore = cfg.Rendering.Explore
	return ctx
}

// traceLogger builds a bare console logger for comparison traces.
func traceLogger() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.LevelKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		zapcore.InfoLevel,
	)
	return zap.New(core)
}

func readInput(path string) (string, error) {
	if path == "" {
		stat, err := os.Stdin.Stat()
		if err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			return "", errors.NewInputError("no input provided", errors.ErrNoInput)
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.NewInputError("failed to read stdin", err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", errors.NewInputError("input is empty", errors.ErrEmptyInput)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewInputError(
				fmt.Sprintf("file '%s' not found", path), errors.ErrFileNotFound)
		}
		return "", errors.NewInputError(
			fmt.Sprintf("failed to read file '%s'", path), err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", path), errors.ErrFileEmpty)
	}
	return string(data), nil
}

// readStateFile reads a JSON state document that must decode to a property
// bag.
func readStateFile(path string) (*values.Bag, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	state, err := values.DecodeJSONString(data)
	if err != nil {
		return nil, errors.NewInputError(
			fmt.Sprintf("file '%s' is not valid JSON", path), err)
	}
	bag, ok := state.(*values.Bag)
	if !ok {
		return nil, errors.NewInputError(
			fmt.Sprintf("file '%s' must contain a JSON object", path), errors.ErrInvalidInputShape)
	}
	return bag, nil
}

func writeOutput(path, content string) error {
	if path == "" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.NewOutputError(
			fmt.Sprintf("failed to write file '%s'", path), err)
	}
	return nil
}
