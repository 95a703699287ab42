// Command sqlnp rewrites SQL with :named parameters into positional form and
// optionally runs it against a database.
//
// Usage:
//
//	sqlnp parse [--dialect d] [SQL]
//	sqlnp exec  --driver D --dsn DSN [-p name=value]... [SQL]
//	sqlnp query --driver D --dsn DSN [-p name=value]... [SQL]
//
// When SQL is omitted it is read from stdin.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/gandaldf/sqlnp"
	"github.com/gandaldf/sqlnp/dbconn"
)

const usage = `usage: sqlnp <parse|exec|query> [flags] [SQL]`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// parseOutput is the JSON document printed by the parse subcommand.
type parseOutput struct {
	SQL    string           `json:"sql"`
	Names  []string         `json:"names"`
	Params map[string][]int `json:"params"`
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return 2
	}
	cmd := args[0]
	switch cmd {
	case "parse", "exec", "query":
	case "-h", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s\n", cmd, usage)
		return 2
	}

	fs := newFlagSet(cmd)
	fs.SetOutput(stderr)
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	log := newLogger(cfg, stderr)

	q, err := readSQL(fs.Args(), stdin)
	if err != nil {
		log.Error().Err(err).Msg("read sql")
		return 1
	}

	switch cmd {
	case "parse":
		err = runParse(cfg, q, stdout)
	default:
		var raw []string
		raw, err = fs.GetStringArray("param")
		if err == nil {
			err = runStatement(ctx, log, cfg, cmd, q, raw, stdout)
		}
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("failed")
		return 1
	}
	return 0
}

// newLogger writes human-readable logs to w at the configured level.
func newLogger(cfg Config, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Str("service", "sqlnp").
		Logger()
}

// readSQL joins the positional arguments, or reads stdin when there are none.
func readSQL(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", errors.Wrap(err, "read stdin")
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

func runParse(cfg Config, q string, stdout io.Writer) error {
	r := sqlnp.ParseDialect(resolveDialect(cfg), q)
	out := parseOutput{
		SQL:    r.SQL(),
		Names:  r.Names(),
		Params: r.Mapping(),
	}
	if out.Names == nil {
		out.Names = []string{}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runStatement(ctx context.Context, log zerolog.Logger, cfg Config, cmd, q string, raw []string, stdout io.Writer) error {
	if cfg.Driver == "" {
		return errors.New("--driver is required")
	}
	params, err := parseParams(raw)
	if err != nil {
		return err
	}

	h, err := openHelper(cfg, dbconn.WithLogger(log))
	if err != nil {
		return err
	}
	defer h.Close()

	db, err := h.DB(ctx)
	if err != nil {
		return err
	}

	r := sqlnp.ParseDialect(resolveDialect(cfg), q)
	log.Debug().Str("sql", r.SQL()).Strs("names", r.Names()).Msg("parsed")

	stmt, err := r.Prepare(ctx, db)
	if err != nil {
		return errors.Wrap(err, "prepare")
	}
	defer stmt.Close()

	if err := stmt.SetMap(params); err != nil {
		return err
	}

	if cmd == "exec" {
		n, err := stmt.ExecuteUpdate(ctx)
		if err != nil {
			return errors.Wrap(err, "exec")
		}
		_, err = fmt.Fprintf(stdout, "%d rows affected\n", n)
		return err
	}

	rows, err := stmt.ExecuteQuery(ctx)
	if err != nil {
		return errors.Wrap(err, "query")
	}
	defer rows.Close()
	return writeRows(rows, stdout)
}

// writeRows prints each row as one JSON object keyed by column name.
func writeRows(rows *sql.Rows, w io.Writer) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		obj := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				obj[c] = string(b)
				continue
			}
			obj[c] = vals[i]
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return rows.Err()
}
