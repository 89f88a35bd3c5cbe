package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/movekind/gateway/internal/calendar"
	"github.com/movekind/gateway/internal/config"
	"github.com/movekind/gateway/internal/schedule"
	"github.com/movekind/gateway/internal/umbraco"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const usage = `Usage: movekind-schedule [flags] <command> [args]

Commands:
  week [offset]                        list sessions for the week (0 = this week)
  add <date> <HH:mm> <title> <workout> schedule a session
  remove <id>                          remove a session

Flags:
`

func main() {
	cookie := flag.String("cookie", "", "member cookie header (defaults to MOVEKIND_MCP_COOKIE)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println("movekind-schedule", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *cookie == "" {
		*cookie = cfg.MCP.Cookie
	}

	client := umbraco.New(cfg.Umbraco.BaseURL, umbraco.Options{
		Timeout:            cfg.Umbraco.Timeout,
		InsecureSkipVerify: cfg.Umbraco.InsecureSkipVerify,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = umbraco.WithCookie(ctx, *cookie)

	view := schedule.NewView(client)
	args := flag.Args()

	switch args[0] {
	case "week":
		offset := 0
		if len(args) > 1 {
			if _, err := fmt.Sscan(args[1], &offset); err != nil {
				fail("offset must be an integer")
			}
		}
		err = runWeek(ctx, view, offset)
	case "add":
		if len(args) != 5 {
			flag.Usage()
			os.Exit(2)
		}
		err = runAdd(ctx, view, args[1], args[2], args[3], args[4])
	case "remove":
		if len(args) != 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = view.RemoveSession(ctx, args[1])
		if err == nil {
			fmt.Println(view.Notice())
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Debug("command failed", "command", args[0], "error", err)
		fail(umbraco.Message(err))
	}
}

func runWeek(ctx context.Context, view *schedule.View, offset int) error {
	if err := view.LoadWeek(ctx, calendar.NewWeekWindow(time.Now(), offset)); err != nil {
		return err
	}
	snap := view.Snapshot()
	fmt.Printf("Week %d (%s to %s)\n", snap.Window.WeekNumber, snap.Window.From(), snap.Window.To())
	for _, d := range snap.Days {
		marker := " "
		if d.Today {
			marker = "*"
		}
		fmt.Printf("%s %s %s\n", marker, d.Key, d.DateISO)
		if d.Empty {
			fmt.Println("    no sessions")
			continue
		}
		for _, s := range d.Sessions {
			fmt.Printf("    %s  %s  [%s]\n", s.Time, s.Title, s.ID)
		}
	}
	return nil
}

func runAdd(ctx context.Context, view *schedule.View, date, hhmm, title, workout string) error {
	d, err := calendar.ParseISODate(date, time.Local)
	if err != nil {
		return errors.New("Please choose a valid date.")
	}
	window := calendar.NewWeekWindow(d, 0)
	if _, err := view.CreateSession(ctx, window.Days[window.DayIndex(date)], hhmm, title, workout); err != nil {
		return err
	}
	fmt.Println(view.Notice())
	return nil
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
