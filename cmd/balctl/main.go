// Command balctl inspects and converts EIP-7928 block access lists.
//
// Usage:
//
//	balctl [global flags] <command> [command flags] <file>
//
// Commands:
//
//	encode    convert a JSON access list to canonical RLP
//	decode    convert canonical RLP to JSON
//	hash      print the keccak256 commitment of an access list
//	stats     print change counts and parallelism figures
//	validate  check canonical ordering and size bounds
//
// A file argument of "-" reads from stdin. Results go to stdout, logs and
// metrics to stderr.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/ethaccess/ethaccess/bal"
	"github.com/ethaccess/ethaccess/log"
	"github.com/ethaccess/ethaccess/metrics"
	"github.com/ethaccess/ethaccess/rlp"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

var (
	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "write output to `FILE` instead of stdout",
	}
	lenientFlag = &cli.BoolFlag{
		Name:  "lenient",
		Usage: "tolerate repeated transaction indices within a change list",
	}
	checkFlag = &cli.BoolFlag{
		Name:  "check",
		Usage: "cross-check the output against the reflection encoder",
	}
	prettyFlag = &cli.BoolFlag{
		Name:  "pretty",
		Usage: "indent JSON output",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Value: "info",
		Usage: "log verbosity (debug, info, warn, error)",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "print codec metrics to stderr on exit",
	}
)

var encodeCommand = &cli.Command{
	Action:    encodeAction,
	Name:      "encode",
	Usage:     "convert a JSON access list to canonical RLP",
	ArgsUsage: "<in.json>",
	Flags:     []cli.Flag{outFlag, lenientFlag, checkFlag},
	Description: `Reads a JSON access list, sorts it into canonical order,
validates it, and writes the canonical RLP encoding.`,
}

var decodeCommand = &cli.Command{
	Action:    decodeAction,
	Name:      "decode",
	Usage:     "convert canonical RLP to JSON",
	ArgsUsage: "<in.rlp>",
	Flags:     []cli.Flag{outFlag, lenientFlag, prettyFlag},
}

var hashCommand = &cli.Command{
	Action:    hashAction,
	Name:      "hash",
	Usage:     "print the keccak256 commitment of an access list",
	ArgsUsage: "<in.rlp>",
	Flags:     []cli.Flag{lenientFlag},
}

var statsCommand = &cli.Command{
	Action:    statsAction,
	Name:      "stats",
	Usage:     "print change counts and parallelism figures",
	ArgsUsage: "<in.rlp>",
	Flags:     []cli.Flag{lenientFlag},
}

var validateCommand = &cli.Command{
	Action:    validateAction,
	Name:      "validate",
	Usage:     "check canonical ordering and size bounds",
	ArgsUsage: "<in.rlp>",
	Flags:     []cli.Flag{lenientFlag},
}

// encoderPool backs the -check flag: the hand-rolled encoder output must
// match the reflection encoder byte for byte.
var encoderPool = rlp.NewEncoderPool()

func main() {
	os.Exit(run(os.Args))
}

// run builds and executes the app, returning an exit code so tests can
// drive the CLI without spawning a process.
func run(args []string) int {
	app := cli.NewApp()
	app.Name = "balctl"
	app.Usage = "inspect and convert EIP-7928 block access lists"
	app.Version = fmt.Sprintf("%s (commit %s)", version, commit)
	app.Flags = []cli.Flag{logLevelFlag, metricsFlag}
	app.Commands = []*cli.Command{
		encodeCommand,
		decodeCommand,
		hashCommand,
		statsCommand,
		validateCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		log.SetDefault(log.New(log.ParseLevel(ctx.String(logLevelFlag.Name))))
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		if ctx.Bool(metricsFlag.Name) {
			printMetrics(os.Stderr)
		}
		return nil
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(os.Stderr, "balctl:", err)
		return 1
	}
	return 0
}

func encodeAction(ctx *cli.Context) error {
	path, data, err := readInput(ctx)
	if err != nil {
		return err
	}
	var parsed bal.BlockAccessList
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	list, err := bal.Build(parsed.Accounts, validationConfig(ctx))
	if err != nil {
		return fmt.Errorf("validate %s: %w", path, err)
	}

	enc := list.Encode()
	if ctx.Bool(checkFlag.Name) {
		ref, err := encoderPool.EncodeBytes(list.Accounts)
		if err != nil {
			return fmt.Errorf("reference encode: %w", err)
		}
		if !bytes.Equal(enc, ref) {
			return fmt.Errorf("encoder mismatch: canonical %d bytes, reference %d bytes", len(enc), len(ref))
		}
	}
	log.Default().Module("cli").Debug("encoded access list",
		"file", path, "accounts", list.Len(), "bytes", len(enc))
	return writeOutput(ctx, enc)
}

func decodeAction(ctx *cli.Context) error {
	list, _, err := decodeInput(ctx)
	if err != nil {
		return err
	}
	var out []byte
	if ctx.Bool(prettyFlag.Name) {
		out, err = json.MarshalIndent(list, "", "  ")
	} else {
		out, err = json.Marshal(list)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return writeOutput(ctx, append(out, '\n'))
}

func hashAction(ctx *cli.Context) error {
	list, _, err := decodeInput(ctx)
	if err != nil {
		return err
	}
	fmt.Println(list.Hash())
	return nil
}

func statsAction(ctx *cli.Context) error {
	list, data, err := decodeInput(ctx)
	if err != nil {
		return err
	}
	c := list.Counts()
	fmt.Printf("accounts:        %d\n", c.Accounts)
	fmt.Printf("slots:           %d\n", c.Slots)
	fmt.Printf("storage writes:  %d\n", c.StorageChanges)
	fmt.Printf("balance changes: %d\n", c.BalanceChanges)
	fmt.Printf("nonce changes:   %d\n", c.NonceChanges)
	fmt.Printf("code changes:    %d\n", c.CodeChanges)
	fmt.Printf("encoded size:    %d bytes\n", len(data))
	fmt.Printf("hash:            %s\n", list.Hash())

	detector := bal.NewConflictDetector()
	conflicts := detector.DetectConflicts(list)
	fmt.Printf("conflicts:       %d\n", len(conflicts))

	waves, err := bal.Waves(list)
	switch {
	case errors.Is(err, bal.ErrNoTransactions):
		fmt.Printf("waves:           0\n")
	case err != nil:
		return fmt.Errorf("schedule: %w", err)
	default:
		fmt.Printf("waves:           %d\n", len(waves))
		fmt.Printf("parallelism:     %.2fx\n", bal.ParallelismRatio(waves))
	}
	return nil
}

func validateAction(ctx *cli.Context) error {
	path, data, err := readInput(ctx)
	if err != nil {
		return err
	}
	list, err := bal.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := list.ValidateConfig(validationConfig(ctx)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c := list.Counts()
	fmt.Printf("%s: valid (%d accounts, %d slots, %d changes)\n",
		path, c.Accounts, c.Slots,
		c.StorageChanges+c.BalanceChanges+c.NonceChanges+c.CodeChanges)
	return nil
}

// decodeInput reads the single file argument, decodes it, and validates it
// under the command's duplicate policy.
func decodeInput(ctx *cli.Context) (*bal.BlockAccessList, []byte, error) {
	path, data, err := readInput(ctx)
	if err != nil {
		return nil, nil, err
	}
	list, err := bal.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := list.ValidateConfig(validationConfig(ctx)); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return list, data, nil
}

func readInput(ctx *cli.Context) (string, []byte, error) {
	if ctx.Args().Len() != 1 {
		return "", nil, fmt.Errorf("expected exactly one input file, got %d arguments", ctx.Args().Len())
	}
	path := ctx.Args().First()
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return path, nil, fmt.Errorf("read stdin: %w", err)
		}
		return "stdin", data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return path, nil, err
	}
	return path, data, nil
}

func writeOutput(ctx *cli.Context, data []byte) error {
	if out := ctx.String(outFlag.Name); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err := os.Stdout.Write(data)
	return err
}

func validationConfig(ctx *cli.Context) bal.Config {
	if ctx.Bool(lenientFlag.Name) {
		return bal.Config{Duplicates: bal.AllowDuplicates}
	}
	return bal.Config{}
}

func printMetrics(w io.Writer) {
	snapshot := metrics.DefaultRegistry.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-24s %v\n", name, snapshot[name])
	}
}
