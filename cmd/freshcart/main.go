// Command freshcart is the terminal client for the shared shopping list. It
// talks to a freshcartd daemon, keeps a synchronized local snapshot, and
// renders it per the requested search, filter, and sort.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vbonduro/freshcart/internal/auth"
	"github.com/vbonduro/freshcart/internal/config"
	"github.com/vbonduro/freshcart/internal/domain"
	"github.com/vbonduro/freshcart/internal/logging"
	"github.com/vbonduro/freshcart/internal/store/remote"
	"github.com/vbonduro/freshcart/internal/suggest"
	listsync "github.com/vbonduro/freshcart/internal/sync"
	"github.com/vbonduro/freshcart/internal/view"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if cfg.UserID == "" {
		fmt.Fprintln(os.Stderr, "USER_ID must be set; the list tracks who added what")
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:], cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(command string, args []string, cfg *config.Config, logger *slog.Logger) error {
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{UserID: cfg.UserID})
	ctrl := listsync.New(remote.New(cfg.ServerURL, cfg.AuthToken, cfg.UserID, logger), logger)

	switch command {
	case "list":
		return runList(ctx, ctrl, args)
	case "add":
		return runAdd(ctx, ctrl, cfg, logger, args)
	case "toggle":
		return runToggle(ctx, ctrl, args)
	case "rm":
		return runRemove(ctx, ctrl, args)
	case "clear":
		return runClear(ctx, ctrl)
	case "seed":
		return runSeed(ctx, ctrl)
	case "suggest":
		return runSuggest(ctx, ctrl, cfg, logger)
	case "watch":
		return runWatch(ctx, ctrl, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: freshcart <command> [flags]

commands:
  list     show the list (-search, -filter all|pending|purchased, -sort date|alphabetical|category)
  add      add an item: add [-category NAME] [-note TEXT] <item name>
  toggle   flip an item's purchased state by id or unique id prefix
  rm       remove an item by id or unique id prefix
  clear    remove every purchased item
  seed     add the starter staples
  suggest  ask for suggestions and pick which to add (needs ANTHROPIC_API_KEY)
  watch    keep rendering the list as the household changes it`)
}

// start initializes the controller and guarantees the feed is torn down.
// Initialize may open the subscription and still report a fetch error, so
// the error path closes too.
func start(ctx context.Context, ctrl *listsync.Controller) (func(), error) {
	if err := ctrl.Initialize(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl.Close, nil
}

func runList(ctx context.Context, ctrl *listsync.Controller, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	search := fs.String("search", "", "match against item names and notes")
	filter := fs.String("filter", "all", "all, pending, or purchased")
	sortBy := fs.String("sort", "date", "date, alphabetical, or category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	render(ctrl.Items(), *search, view.Filter(*filter), view.Sort(*sortBy))
	return nil
}

func runAdd(ctx context.Context, ctrl *listsync.Controller, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	category := fs.String("category", "", "category; guessed from the name when empty and an API key is set")
	note := fs.String("note", "", "free-form note")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return fmt.Errorf("item name required")
	}

	item := domain.NewItem{Name: name, Category: domain.ParseCategory(*category)}
	if *category == "" && cfg.AnthropicAPIKey != "" {
		client := suggest.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
		item.Category = client.Categorize(ctx, name)
	}
	if *note != "" {
		item.Note = note
	}

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	if err := ctrl.Add(ctx, item); err != nil {
		return err
	}
	fmt.Printf("added %q (%s)\n", item.Name, item.Category)
	return nil
}

func runToggle(ctx context.Context, ctrl *listsync.Controller, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: freshcart toggle <id>")
	}

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	id, err := resolveID(ctrl.Items(), args[0])
	if err != nil {
		return err
	}
	return ctrl.TogglePurchased(ctx, id)
}

func runRemove(ctx context.Context, ctrl *listsync.Controller, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: freshcart rm <id>")
	}

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	id, err := resolveID(ctrl.Items(), args[0])
	if err != nil {
		return err
	}
	return ctrl.Delete(ctx, id)
}

func runClear(ctx context.Context, ctrl *listsync.Controller) error {
	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()
	return ctrl.ClearPurchased(ctx)
}

func runSeed(ctx context.Context, ctrl *listsync.Controller) error {
	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	if err := ctrl.SeedStarterItems(ctx); err != nil {
		return err
	}
	fmt.Printf("added %d starter items\n", len(domain.StarterItems))
	return nil
}

func runSuggest(ctx context.Context, ctrl *listsync.Controller, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY must be set for suggestions")
	}

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	names := make([]string, 0)
	for _, item := range ctrl.Items() {
		names = append(names, item.Name)
	}

	client := suggest.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, logger)
	session := suggest.NewSession(client, ctrl)
	session.Request(ctx, names)

	candidates := session.Candidates()
	if len(candidates) == 0 {
		fmt.Println("no suggestions right now")
		return nil
	}

	in := bufio.NewScanner(os.Stdin)
	for _, cand := range candidates {
		fmt.Printf("add %q (%s)? [y/N] ", cand.Name, cand.Category)
		if !in.Scan() {
			break
		}
		if strings.EqualFold(strings.TrimSpace(in.Text()), "y") {
			if err := session.Accept(ctx, cand.Name); err != nil {
				fmt.Fprintf(os.Stderr, "could not add %q: %v\n", cand.Name, err)
			}
		}
	}
	return in.Err()
}

func runWatch(ctx context.Context, ctrl *listsync.Controller, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	search := fs.String("search", "", "match against item names and notes")
	filter := fs.String("filter", "all", "all, pending, or purchased")
	sortBy := fs.String("sort", "date", "date, alphabetical, or category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctrl.SetOnUpdate(func() {
		fmt.Print("\033[H\033[2J")
		render(ctrl.Items(), *search, view.Filter(*filter), view.Sort(*sortBy))
	})

	done, err := start(ctx, ctrl)
	if err != nil {
		return err
	}
	defer done()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	return nil
}

// resolveID matches raw against a full item id or a unique prefix of one.
func resolveID(items []domain.GroceryItem, raw string) (string, error) {
	var match string
	for _, item := range items {
		if item.ID == raw {
			return item.ID, nil
		}
		if strings.HasPrefix(item.ID, raw) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", raw)
			}
			match = item.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no item with id %q", raw)
	}
	return match, nil
}

func render(items []domain.GroceryItem, search string, filter view.Filter, sortBy view.Sort) {
	projected := view.Project(items, search, filter, sortBy)
	for _, item := range projected {
		mark := " "
		if item.IsPurchased {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %-30s %-12s %s", mark, item.Name, item.Category, item.ID[:min(8, len(item.ID))])
		if item.Note != nil {
			line += "  // " + *item.Note
		}
		fmt.Println(line)
	}

	counts := view.Count(items)
	fmt.Printf("%d items: %d to buy, %d purchased\n", counts.Total, counts.Pending, counts.Purchased)
}
