package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joao-fontenele/waterflow/internal/admin"
	"github.com/joao-fontenele/waterflow/internal/auth"
	"github.com/joao-fontenele/waterflow/internal/cart"
	"github.com/joao-fontenele/waterflow/internal/checkout"
	"github.com/joao-fontenele/waterflow/internal/config"
	"github.com/joao-fontenele/waterflow/internal/domain"
	"github.com/joao-fontenele/waterflow/internal/remote"
	"github.com/joao-fontenele/waterflow/internal/session"
	"github.com/joao-fontenele/waterflow/internal/tracking"
)

const usage = `usage: waterctl [flags] <command> [args]

commands:
  products                          list products
  cart [add <product> <qty> | remove <product> | clear]
  checkout <address>                create one delivery request per cart line
  track [id]                        show delivery progress
  history <id>                      show a delivery request's lifecycle events
  admin list [-q text] [-status s]  list every delivery request
  admin summary                     counts and revenue over all requests
  admin approve|reject|advance <id> operator commands
  token -customer id [-role r]      sign a development token with JWT_SECRET`

var errUsage = errors.New(usage)

type app struct {
	client *remote.Client
	sess   session.Session
	out    io.Writer
	json   bool
	logger *slog.Logger
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) error {
	global := flag.NewFlagSet("waterctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	baseURL := global.String("url", config.String("WATERFLOW_URL", "http://localhost:8080"), "store gateway URL")
	token := global.String("token", config.String("WATERFLOW_TOKEN", ""), "bearer token")
	customer := global.String("customer", config.String("WATERFLOW_CUSTOMER", ""), "customer id the token belongs to")
	timeout := global.Duration("timeout", config.Duration("REMOTE_TIMEOUT", remote.DefaultTimeout), "per-call timeout")
	jsonOut := global.Bool("json", false, "print JSON instead of tables")
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w\n\n%s", err, usage)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return errUsage
	}
	command, cmdArgs := rest[0], rest[1:]

	if command == "token" {
		return runToken(cmdArgs, out)
	}

	a := &app{
		client: remote.New(*baseURL, remote.WithTimeout(*timeout), remote.WithLogger(logger)),
		sess:   session.Session{CustomerID: *customer, Token: *token},
		out:    out,
		json:   *jsonOut,
		logger: logger,
	}

	switch command {
	case "products":
		return a.products(ctx)
	case "cart":
		return a.cart(ctx, cmdArgs)
	case "checkout":
		return a.checkout(ctx, cmdArgs)
	case "track":
		return a.track(ctx, cmdArgs)
	case "history":
		return a.history(ctx, cmdArgs)
	case "admin":
		return a.admin(ctx, cmdArgs)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	customer := fs.String("customer", "", "customer id")
	role := fs.String("role", auth.RoleCustomer, "customer or admin")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := config.Require("JWT_SECRET")
	if err != nil {
		return err
	}

	token, err := auth.Issue(secret, *customer, *role, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func (a *app) products(ctx context.Context) error {
	products, err := a.client.ListProducts(ctx, a.sess)
	if err != nil {
		return err
	}
	if a.json {
		return a.printJSON(products)
	}

	return a.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
		for _, p := range products {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, money(p.Price))
		}
	})
}

func (a *app) cart(ctx context.Context, args []string) error {
	c := cart.New(a.client, a.sess, a.logger)

	var err error
	switch {
	case len(args) == 0 || args[0] == "show":
		err = c.Refresh(ctx)
	case args[0] == "add" && len(args) == 3:
		qty, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return fmt.Errorf("invalid quantity %q", args[2])
		}
		err = c.Add(ctx, args[1], qty)
	case args[0] == "remove" && len(args) == 2:
		err = c.Remove(ctx, args[1])
	case args[0] == "clear":
		err = c.Clear(ctx)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	return a.printCart(c)
}

func (a *app) printCart(c *cart.Cart) error {
	lines := c.Lines()
	if a.json {
		return a.printJSON(map[string]any{"lines": lines, "total": c.Total()})
	}

	return a.table(func(w io.Writer) {
		fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tSUBTOTAL")
		for _, l := range lines {
			name := "(unavailable)"
			if l.Product != nil {
				name = l.Product.Name
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", l.ProductID, name, l.Quantity, money(l.Subtotal()))
		}
		fmt.Fprintf(w, "\t\tTOTAL\t%s\n", money(c.Total()))
	})
}

func (a *app) checkout(ctx context.Context, args []string) error {
	address := strings.Join(args, " ")
	c := cart.New(a.client, a.sess, a.logger)

	result, err := checkout.NewBuilder(a.client, a.logger).Checkout(ctx, c, address)
	var partial *checkout.Error
	if errors.As(err, &partial) {
		fmt.Fprintf(a.out, "created before failure: %s\n", strings.Join(partial.Created, ", "))
	}
	if result == nil {
		return err
	}
	if err != nil {
		a.logger.Warn("checkout finished with an error", "error", err)
	}

	if a.json {
		return a.printJSON(result.Requests)
	}
	return a.printRequests(result.Requests)
}

func (a *app) track(ctx context.Context, args []string) error {
	tracker := tracking.NewTracker(a.client, a.sess)

	var tracked []tracking.Tracked
	if len(args) > 0 {
		one, err := tracker.TrackOne(ctx, args[0])
		if err != nil {
			return err
		}
		tracked = append(tracked, *one)
	} else {
		all, err := tracker.Track(ctx)
		if err != nil {
			return err
		}
		tracked = all
	}

	if a.json {
		return a.printJSON(tracked)
	}

	for _, t := range tracked {
		fmt.Fprintf(a.out, "%s  %s x%d  [%s]\n", t.Request.ID, t.Request.ProductName, t.Request.Quantity, t.Request.Status)
		for _, step := range t.View.Steps {
			fmt.Fprintf(a.out, "  %s %s\n", marker(step.State), step.Label)
		}
	}
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	events, err := a.client.DeliveryHistory(ctx, a.sess, args[0])
	if err != nil {
		return err
	}
	if a.json {
		return a.printJSON(events)
	}

	return a.table(func(w io.Writer) {
		fmt.Fprintln(w, "WHEN\tEVENT\tFROM\tTO")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.OccurredAt.Format(time.RFC3339), e.Type, e.From, e.To)
		}
	})
}

func (a *app) admin(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	m := admin.NewManager(a.client, a.sess, a.logger)

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("admin list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		query := fs.String("q", "", "address contains")
		status := fs.String("status", "", "pending, approved or rejected")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		requests := m.Filter(admin.Filter{Query: *query, Status: domain.Status(*status)})
		if a.json {
			return a.printJSON(requests)
		}
		return a.printRequests(requests)

	case "summary":
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		summary := m.Summary()
		if a.json {
			return a.printJSON(summary)
		}
		return a.table(func(w io.Writer) {
			fmt.Fprintf(w, "requests\t%d\n", summary.Count)
			for _, s := range []domain.Status{domain.StatusPending, domain.StatusApproved, domain.StatusRejected} {
				fmt.Fprintf(w, "%s\t%d\n", s, summary.ByStatus[s])
			}
			for _, s := range domain.Stages {
				fmt.Fprintf(w, "%s\t%d\n", s, summary.ByStage[s])
			}
			fmt.Fprintf(w, "revenue\t%s\n", money(summary.Revenue))
		})

	case "approve", "reject", "advance":
		if len(args) != 2 {
			return errUsage
		}
		var (
			req *domain.DeliveryRequest
			err error
		)
		switch args[0] {
		case "approve":
			req, err = m.Approve(ctx, args[1])
		case "reject":
			req, err = m.Reject(ctx, args[1])
		default:
			req, err = m.Advance(ctx, args[1])
		}
		if req == nil {
			return err
		}
		if err != nil {
			a.logger.Warn("command applied but reload failed", "error", err)
		}
		if a.json {
			return a.printJSON(req)
		}
		return a.printRequests([]domain.DeliveryRequest{*req})

	default:
		return errUsage
	}
}

func (a *app) printRequests(requests []domain.DeliveryRequest) error {
	return a.table(func(w io.Writer) {
		fmt.Fprintln(w, "ID\tCUSTOMER\tPRODUCT\tQTY\tTOTAL\tSTATUS\tSTAGE\tADDRESS")
		for _, r := range requests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				r.ID, r.CustomerID, r.ProductID, r.Quantity, money(r.Total()), r.Status, r.Stage, r.Address)
		}
	})
}

func (a *app) table(fill func(w io.Writer)) error {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fill(w)
	return w.Flush()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// money renders minor currency units with two decimals.
func money(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func marker(state tracking.StepState) string {
	switch state {
	case tracking.StepCompleted:
		return "[x]"
	case tracking.StepInProgress:
		return "[>]"
	case tracking.StepPending:
		return "[ ]"
	default:
		return "[?]"
	}
}
