// Command hwctl is a dev CLI for hotwatch maintenance and debugging tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/dustin/go-humanize"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/hotwatch/internal/auth"
	browseropts "github.com/ibeckermayer/hotwatch/internal/browser"
	"github.com/ibeckermayer/hotwatch/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bot-test":
		runBotTest()
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: hwctl open <config|data|reports>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	case "session":
		runSession()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: hwctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  bot-test       Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open data      Open data directory in file explorer")
	fmt.Println("  open reports   Open report directory in file explorer")
	fmt.Println("  session        Show the stored session and when it expires")
}

func loadConfig() *config.Config {
	cfg, err := config.Load("")
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func runBotTest() {
	log.Println("Opening bot.sannysoft.com with stealth browser options...")

	opts := browseropts.Options(false) // non-headless so you can see it

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var webdriver bool
	err := chromedp.Run(ctx,
		chromedp.Navigate("https://bot.sannysoft.com"),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Evaluate(`navigator.webdriver === true`, &webdriver),
	)
	if err != nil {
		log.Fatalf("Failed to navigate: %v", err)
	}
	log.Printf("navigator.webdriver exposed: %v", webdriver)

	fmt.Println("Press Enter to close the browser...")
	fmt.Scanln()

	log.Println("Done.")
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "data":
		path = loadConfig().Storage.DataDir
	case "reports":
		path = loadConfig().Storage.ReportDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func runSession() {
	sessions := auth.NewSessionStore(loadConfig().Storage.SessionPath())

	blob, err := sessions.Load()
	if errors.Is(err, auth.ErrNoSession) {
		fmt.Println("No stored session. Run `hotwatch login`.")
		return
	}
	if err != nil {
		log.Fatalf("Failed to read session: %v", err)
	}

	jar, err := browseropts.DecodeCookies(blob)
	if err != nil {
		log.Fatalf("Stored session is unreadable: %v", err)
	}

	fmt.Printf("Session file: %s\n", sessions.Path())
	fmt.Printf("Cookies:      %d\n", len(jar.Cookies))
	if !jar.CapturedAt.IsZero() {
		fmt.Printf("Captured:     %s\n", humanize.Time(jar.CapturedAt))
	}

	exp := jar.EarliestExpiry()
	switch {
	case exp.IsZero():
		fmt.Println("Expires:      with the browser session")
	case exp.Before(time.Now()):
		fmt.Printf("Expires:      expired %s\n", humanize.Time(exp))
	default:
		fmt.Printf("Expires:      %s\n", humanize.Time(exp))
	}
}
