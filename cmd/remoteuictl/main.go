package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/docopt/docopt-go"

	"remote-ui/go-backend/pkg/models"
)

const RemoteUICtlVersion = "0.1.0"

const usage = `Remote UI control.

Talks JSON-RPC to a running remote UI daemon. The default rpc url is
http://127.0.0.1:8787 and the token is read from RUI_RPC_TOKEN when
--token is not given.

Usage:
    remoteuictl open [options] <route>
    remoteuictl render [options] <session> [<slot>]
    remoteuictl trigger [options] <session> <action>
        [--form=<json>] [--sender=<ref>]
    remoteuictl close [options] <session>
    remoteuictl watch [options] [--session=<session>] [--cursor=<seq>]
        [--count=<n>]

Options:
    -h --help              Show this screen.
    --version              Show version.
    --rpc_url=<url>        Daemon base url.
    --token=<token>        RPC token.
    --client_id=<id>       Client id that owns opened sessions.
    --form=<json>          Form payload for form actions.
    --sender=<ref>         Model reference of the triggering field.
    --session=<session>    Only print events of this session.
    --cursor=<seq>         Replay events after this sequence number.
    --count=<n>            Exit after this many events.`

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		Err.Fatal(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpAndExit}
	opts, err := parser.ParseArgs(usage, args, RemoteUICtlVersion)
	if err != nil {
		return err
	}
	client := clientFromOpts(opts)

	if open, _ := opts.Bool("open"); open {
		return openSession(ctx, client, opts, out)
	} else if render, _ := opts.Bool("render"); render {
		return renderSession(ctx, client, opts, out)
	} else if trigger, _ := opts.Bool("trigger"); trigger {
		return triggerAction(ctx, client, opts, out)
	} else if closeCmd, _ := opts.Bool("close"); closeCmd {
		return closeSession(ctx, client, opts, out)
	} else if watch, _ := opts.Bool("watch"); watch {
		return watchEvents(ctx, client, opts, out)
	}
	return errors.New("no command given")
}

func clientFromOpts(opts docopt.Opts) *rpcClient {
	baseURL, _ := opts.String("--rpc_url")
	token, _ := opts.String("--token")
	if token == "" {
		token = os.Getenv("RUI_RPC_TOKEN")
	}
	clientID, _ := opts.String("--client_id")
	return newRPCClient(baseURL, token, clientID)
}

func openSession(ctx context.Context, client *rpcClient, opts docopt.Opts, out io.Writer) error {
	target, _ := opts.String("<route>")
	var result models.OpenSessionResult
	if err := client.Call(ctx, models.MethodOpenSession, models.OpenSessionParams{Route: target}, &result); err != nil {
		return err
	}
	return printJSON(out, result)
}

func renderSession(ctx context.Context, client *rpcClient, opts docopt.Opts, out io.Writer) error {
	session, _ := opts.String("<session>")
	slot, _ := opts.String("<slot>")
	var result models.RenderSessionResult
	params := models.RenderSessionParams{Session: session, Slot: slot}
	if err := client.Call(ctx, models.MethodRenderSession, params, &result); err != nil {
		return err
	}
	return printJSON(out, result)
}

func triggerAction(ctx context.Context, client *rpcClient, opts docopt.Opts, out io.Writer) error {
	session, _ := opts.String("<session>")
	action, _ := opts.String("<action>")
	params := models.TriggerActionParams{Session: session, Action: action}
	if form, err := opts.String("--form"); err == nil && form != "" {
		if !json.Valid([]byte(form)) {
			return fmt.Errorf("--form is not valid JSON")
		}
		params.Form = json.RawMessage(form)
	}
	if sender, err := opts.String("--sender"); err == nil && sender != "" {
		params.Sender = &sender
	}
	var result models.StatusResult
	if err := client.Call(ctx, models.MethodTriggerAction, params, &result); err != nil {
		return err
	}
	return printJSON(out, result)
}

func closeSession(ctx context.Context, client *rpcClient, opts docopt.Opts, out io.Writer) error {
	session, _ := opts.String("<session>")
	var result models.StatusResult
	if err := client.Call(ctx, models.MethodCloseSession, models.CloseSessionParams{Session: session}, &result); err != nil {
		return err
	}
	return printJSON(out, result)
}

func watchEvents(ctx context.Context, client *rpcClient, opts docopt.Opts, out io.Writer) error {
	session, _ := opts.String("--session")
	cursor := int64(0)
	if raw, err := opts.String("--cursor"); err == nil && raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid --cursor %q", raw)
		}
		cursor = parsed
	}
	limit := 0
	if raw, err := opts.String("--count"); err == nil && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("invalid --count %q", raw)
		}
		limit = parsed
	}

	seen := 0
	return client.Watch(ctx, session, cursor, func(n models.Notification) bool {
		if err := printJSON(out, n); err != nil {
			Err.Printf("print event: %v", err)
		}
		seen++
		return limit == 0 || seen < limit
	})
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
