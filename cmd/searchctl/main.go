package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/searchclient/internal/feeder"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulk"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/bulkable"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/client"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/query"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/reply"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/request"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/serializer"
	"github.com/Adithya-Monish-Kumar-K/searchclient/pkg/transport"
)

const usage = `usage: searchctl [-config file] <command> [flags] [args]

commands:
  ping                          check the engine answers
  get [-type t] <index> <id>    fetch one document
  search [-type t] [-match field=text] [-size n] <index>
  refresh <index>               make recent writes searchable
  bulk [-refresh mode] <file>   send a file of actions as one bulk request
  publish <file>                queue a file of actions on the action topic
  replay [-limit n]             resend dead-lettered actions
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "searchctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("searchctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "publish":
		return publish(ctx, cfg, rest, out)
	}

	tr, err := transport.New(cfg, nil)
	if err != nil {
		return err
	}
	c := client.New(tr)

	switch cmd {
	case "ping":
		if err := c.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	case "get":
		return get(ctx, c, cfg, rest, out)
	case "search":
		return search(ctx, c, cfg, rest, out)
	case "refresh":
		if len(rest) != 1 {
			return errUsage
		}
		res, err := client.Expect[reply.Refresh](ctx, c, request.NewRefresh(rest[0]))
		if err != nil {
			return err
		}
		return printJSON(out, res)
	case "bulk":
		return sendBulk(ctx, c, rest, out)
	case "replay":
		return replay(ctx, c, cfg, rest, out)
	default:
		return errUsage
	}
}

func get(ctx context.Context, c *client.Client, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typ := fs.String("type", cfg.Engine.DefaultType, "document type")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return errUsage
	}

	res, err := client.Expect[reply.Get](ctx, c, request.NewGetDocument(fs.Arg(0), *typ, fs.Arg(1)))
	if err != nil {
		return err
	}
	if !res.Found {
		return fmt.Errorf("document %s/%s not found", fs.Arg(0), fs.Arg(1))
	}
	return printJSON(out, res)
}

func search(ctx context.Context, c *client.Client, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	typ := fs.String("type", "", "document type")
	match := fs.String("match", "", "field=text match query")
	size := fs.Int("size", 10, "maximum hits")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	req := request.NewSearch(fs.Arg(0), *typ).WithSize(*size)
	if *match != "" {
		field, text, ok := strings.Cut(*match, "=")
		if !ok || field == "" {
			return fmt.Errorf("-match wants field=text, got %q", *match)
		}
		req.WithQuery(query.NewMatch(field, text))
	} else {
		req.WithQuery(query.MatchAll{})
	}

	res, err := client.Expect[reply.Search](ctx, c, req)
	if err != nil {
		return err
	}
	return printJSON(out, res)
}

func sendBulk(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bulk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	refresh := fs.String("refresh", bulk.RefreshNone, `refresh mode: "", "true" or "wait_for"`)
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}

	actions, err := readActions(fs.Arg(0))
	if err != nil {
		return err
	}
	req := bulk.NewRequest(actions...)
	req.Refresh = *refresh
	res, err := client.Expect[reply.Bulk](ctx, c, req)
	if err != nil {
		return err
	}

	failures := res.Failures()
	fmt.Fprintf(out, "%d actions, %d failed, took %dms\n", len(actions), len(failures), res.Took)
	for _, f := range failures {
		reason := ""
		if f.Item.Error != nil {
			reason = f.Item.Error.Type + ": " + f.Item.Error.Reason
		}
		fmt.Fprintf(out, "  #%d %s %s/%s: %d %s\n", f.Position, f.Item.Verb, f.Item.Index, f.Item.ID, f.Item.Status, reason)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d actions failed", len(failures), len(actions))
	}
	return nil
}

func publish(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	actions, err := readActions(args[0])
	if err != nil {
		return err
	}
	p := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Actions)
	defer p.Close()
	if err := p.Publish(ctx, actions...); err != nil {
		return err
	}
	fmt.Fprintf(out, "queued %d actions on %s\n", len(actions), cfg.Kafka.Topics.Actions)
	return nil
}

func replay(ctx context.Context, c *client.Client, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 500, "maximum letters to resend")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return errUsage
	}

	pg, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	res, err := feeder.Replay(ctx, postgres.NewDeadLetterStore(pg), c, *limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "replayed %d, rejected %d, corrupt %d\n", res.Replayed, res.Rejected, res.Corrupt)
	return nil
}

// readActions reads polymorphic actions from path, either as one JSON
// array or as one action per line.
func readActions(path string) ([]bulkable.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading actions: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return bulkable.UnmarshalList(data)
	}

	var actions []bulkable.Action
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		a, err := bulkable.Unmarshal(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		actions = append(actions, a)
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%s holds no actions", path)
	}
	slog.Debug("actions read", "path", path, "count", len(actions))
	return actions, nil
}

func printJSON(out io.Writer, v any) error {
	data, err := serializer.EncodePretty(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(bytes.TrimSpace(data)))
	return err
}
