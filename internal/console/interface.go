// Package console is a REPL for driving the Healer interactively:
// point it at a page, feed it a broken selector, and inspect the
// HealingResult it produces.
package console

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"selector-healer/internal/config"
	"selector-healer/internal/healer"
	"selector-healer/internal/ports"
	"selector-healer/internal/strategy"
	"selector-healer/pkg/logg"
)

type Interface struct {
	config   *config.Config
	logger   *zap.Logger
	healer   *healer.Healer
	driver   ports.Driver
	ctx      context.Context
	cancel   context.CancelFunc
	sigChan  chan os.Signal
	stopping bool
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
	Healer *healer.Healer
	Driver ports.Driver
}

func NewInterface(params Params) *Interface {
	ctx, cancel := context.WithCancel(context.Background())

	return &Interface{
		config:  params.Config,
		logger:  params.Logger.With(zap.String(logg.Layer, "console")),
		healer:  params.Healer,
		driver:  params.Driver,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
	}
}

func (i *Interface) Start() error {
	i.printBanner()
	i.printHelp()

	signal.Notify(i.sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-i.sigChan
		fmt.Println("\ninterrupt received, stopping")
		i.stopping = true
		i.Stop()
	}()

	scanner := bufio.NewScanner(os.Stdin)

	for {
		if i.stopping {
			break
		}

		fmt.Print("\nhealer> ")

		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := i.handleCommand(input); err != nil {
			if err.Error() == "exit" {
				break
			}

			i.logger.Error("command error", zap.Error(err))
			fmt.Printf("error: %v\n", err)
		}
	}

	return nil
}

func (i *Interface) Stop() error {
	if i.stopping {
		return nil
	}

	i.stopping = true
	i.logger.Info("stopping console")
	i.cancel()

	return nil
}

func (i *Interface) handleCommand(input string) error {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "help", "h":
		i.printHelp()
	case "exit", "quit", "q":
		return fmt.Errorf("exit")
	case "goto":
		return i.cmdGoto(args)
	case "heal":
		return i.cmdHeal(args)
	case "health":
		i.cmdHealth()
	case "stats":
		i.cmdStats()
	case "clear-cache":
		i.healer.ClearCache()
		fmt.Println("cache and flakiness state cleared")
	default:
		fmt.Printf("unknown command %q, type \"help\" for the list\n", cmd)
	}

	return nil
}

func (i *Interface) cmdGoto(args []string) error {
	if len(args) != 1 {
		fmt.Println("usage: goto <url>")

		return nil
	}

	if err := i.driver.Interact(i.ctx, "", "goto", map[string]any{"url": args[0]}); err != nil {
		fmt.Printf("navigation failed: %v\n", err)
	}

	return nil
}

func (i *Interface) cmdHeal(args []string) error {
	if len(args) == 0 {
		fmt.Println("usage: heal <selector> [expectedType]")

		return nil
	}

	selector := args[0]

	var opts strategy.Options
	if len(args) > 1 {
		opts.ExpectedType = args[1]
	}

	result := i.healer.Heal(i.ctx, selector, opts)

	if result.Success {
		fmt.Printf("healed: %s -> %s (strategy=%s confidence=%.2f metadata=%v)\n",
			selector, result.Selector, result.Strategy, result.Confidence, result.Metadata)
	} else {
		fmt.Printf("failed to heal %q: %s\n", selector, result.Error)
	}

	return nil
}

func (i *Interface) cmdHealth() {
	status := i.healer.HealthCheck(i.ctx)

	fmt.Printf("status: %s\n", status.Status)
	fmt.Printf("cache: size=%d hits=%d\n", status.CacheSize, status.CacheHitCount)

	for name, ok := range status.StrategyStatus {
		fmt.Printf("  %-20s available=%v\n", name, ok)
	}
}

func (i *Interface) cmdStats() {
	stats := i.healer.GetFlakinessStats()
	if len(stats) == 0 {
		fmt.Println("no flakiness observed yet")

		return
	}

	for _, s := range stats {
		fmt.Printf("  %-40s score=%.2f successes=%d failures=%d\n", s.Selector, s.Score, s.Successes, s.Failures)
	}
}

func (i *Interface) printBanner() {
	fmt.Println(`
selector-healer
autonomous selector healing for browser end-to-end tests`)
}

func (i *Interface) printHelp() {
	fmt.Println(`
Available commands:
  help, h                       - Show this help message
  exit, quit, q                 - Exit the application
  goto <url>                    - Navigate the driver to url
  heal <selector> [expectedType] - Heal a broken selector
  health                        - Report per-strategy availability and cache size
  stats                         - Show flakiness stats, ranked descending
  clear-cache                   - Clear the healing cache and flakiness tracker`)
}
