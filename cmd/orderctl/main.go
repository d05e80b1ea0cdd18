package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Apurer/commerce-engine/internal/app/engine"
	"github.com/Apurer/commerce-engine/internal/domains/orders/domain"
	"github.com/Apurer/commerce-engine/internal/domains/orders/ports"
	platformobservability "github.com/Apurer/commerce-engine/internal/platform/observability"
	"github.com/Apurer/commerce-engine/internal/shared/problem"
)

type command struct {
	cartFile       string
	orderID        string
	target         string
	trackingNumber string
}

func main() {
	var cmd command
	flag.StringVar(&cmd.cartFile, "cart", "", "place an order from a JSON cart snapshot file (- reads stdin)")
	flag.StringVar(&cmd.orderID, "order", "", "order id to transition")
	flag.StringVar(&cmd.target, "to", "", "target status for -order, e.g. CONFIRMED")
	flag.StringVar(&cmd.trackingNumber, "tracking", "", "tracking number recorded when shipping")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg, err := engine.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	e, cleanup, err := engine.Build(ctx, cfg, platformobservability.ForCommand(os.Stderr, slog.LevelWarn))
	if err != nil {
		log.Fatalf("failed to wire engine: %v", err)
	}
	defer cleanup()

	order, err := cmd.run(ctx, e.Workflows, os.Stdin)
	if err != nil {
		cleanup()
		os.Exit(report(os.Stderr, problem.FromError(err).WithInstance(cmd.orderID)))
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(order); err != nil {
		log.Printf("failed to print order: %v", err)
	}
}

// report writes the problem document and returns the exit status for it.
func report(w io.Writer, p problem.Detail) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		log.Printf("orderctl: %v", p)
	}
	return p.ExitCode()
}

func (c command) run(ctx context.Context, workflows ports.WorkflowOrchestrator, stdin io.Reader) (*domain.Order, error) {
	switch {
	case c.cartFile != "" && c.orderID != "":
		return nil, errors.New("use either -cart or -order, not both")
	case c.cartFile != "":
		cart, err := readCart(c.cartFile, stdin)
		if err != nil {
			return nil, err
		}
		return workflows.PlaceOrder(ctx, cart)
	case c.orderID != "":
		target := domain.Status(strings.ToUpper(strings.TrimSpace(c.target)))
		if !target.Valid() {
			return nil, fmt.Errorf("-to must name an order status, got %q", c.target)
		}
		return workflows.TransitionOrder(ctx, ports.TransitionInput{
			OrderID:        c.orderID,
			Target:         target,
			TrackingNumber: c.trackingNumber,
		})
	default:
		return nil, errors.New("nothing to do: pass -cart or -order with -to")
	}
}

func readCart(path string, stdin io.Reader) (ports.CartSnapshot, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return ports.CartSnapshot{}, fmt.Errorf("read cart: %w", err)
	}
	var cart ports.CartSnapshot
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cart); err != nil {
		return ports.CartSnapshot{}, fmt.Errorf("decode cart: %w", err)
	}
	return cart, nil
}
