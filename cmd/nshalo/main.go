// Command nshalo decomposes a staggered grid over a process grid, runs ghost
// layer exchange cycles on every rank and verifies the ghost layers against
// the values owned by the neighbors.
//
// With transport kind "local" all ranks run in this process. With kind
// "websocket" one process is started per rank, selected with -rank.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/NSHalo/config"
	"github.com/notargets/NSHalo/decomposition"
	"github.com/notargets/NSHalo/transport"
	"github.com/notargets/NSHalo/transport/wsnet"
)

type options struct {
	ConfigFile string
	Rank       int
	Iterations int
	Debug      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.ConfigFile, "config", "", "TOML run configuration (default: single rank 8x8 2D)")
	flag.IntVar(&opts.Rank, "rank", -1, "rank to run with the websocket transport")
	flag.IntVar(&opts.Iterations, "iterations", 0, "exchange cycles, overrides run.iterations")
	flag.BoolVar(&opts.Debug, "debug", false, "debug logging")
	flag.Parse()

	plog := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)
	if opts.Debug {
		plog = pterm.DefaultLogger.WithLevel(pterm.LogLevelDebug)
	}
	logger := slog.New(pterm.NewSlogHandler(plog))

	if err := run(opts, logger); err != nil {
		logger.Error("halo run failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigFile); err != nil {
			return err
		}
	}
	if opts.Iterations > 0 {
		cfg.Run.Iterations = opts.Iterations
	}

	layout, err := decomposition.NewLayoutFromConfig(cfg)
	if err != nil {
		return err
	}
	st := layout.Statistics()
	pterm.Info.Printfln("%dD grid %v over %v ranks: %d subdomains, %d to %d cells, imbalance %.3f, %d shared faces",
		layout.Dim, layout.GlobalSize, layout.NumProcessors, st.NumRanks, st.MinCells, st.MaxCells,
		st.Imbalance, st.NumLinks)
	if opts.Debug {
		if err := renderLayout(layout); err != nil {
			return err
		}
	}

	var reports []rankReport
	switch cfg.Transport.Kind {
	case config.TransportLocal:
		reports, err = runLocal(layout, cfg.Run.Iterations, logger)
	case config.TransportWebsocket:
		var r rankReport
		r, err = runWebsocket(layout, cfg.Transport.Addresses, opts.Rank, cfg.Run.Iterations, logger)
		reports = []rankReport{r}
	default:
		err = fmt.Errorf("unknown transport %q", cfg.Transport.Kind)
	}
	if err != nil {
		return err
	}

	if err := renderReports(reports); err != nil {
		return err
	}
	mismatches := 0
	for _, r := range reports {
		mismatches += r.Mismatches
	}
	if mismatches > 0 {
		return fmt.Errorf("ghost layer verification failed on %d values", mismatches)
	}
	pterm.Success.Printfln("%d exchange cycles verified on %d ranks", cfg.Run.Iterations, len(reports))
	return nil
}

func runLocal(layout *decomposition.Layout, iterations int, logger *slog.Logger) ([]rankReport, error) {
	world, err := transport.NewLocalWorld(layout.NumRanks())
	if err != nil {
		return nil, err
	}
	defer world.Close()

	reports := make([]rankReport, layout.NumRanks())
	var g errgroup.Group
	for rank := range reports {
		p, err := layout.Parameters(rank)
		if err != nil {
			return nil, err
		}
		g.Go(func() error {
			r, err := runRank(p, world.Comm(rank), iterations, logger)
			if err != nil {
				// Unblock the neighbors waiting on this rank
				world.Close()
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			reports[rank] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func runWebsocket(layout *decomposition.Layout, addrs []string, rank, iterations int,
	logger *slog.Logger) (rankReport, error) {
	if rank < 0 || rank >= layout.NumRanks() {
		return rankReport{}, fmt.Errorf("websocket transport needs -rank in [0,%d), got %d",
			layout.NumRanks(), rank)
	}
	addresses := make(map[int]string, len(addrs))
	for r, a := range addrs {
		addresses[r] = a
	}
	l, err := net.Listen("tcp", addresses[rank])
	if err != nil {
		return rankReport{}, fmt.Errorf("listening on %s: %w", addresses[rank], err)
	}
	peer, err := wsnet.NewPeer(rank, addresses, l, logger)
	if err != nil {
		return rankReport{}, errors.Join(err, l.Close())
	}
	p, err := layout.Parameters(rank)
	if err != nil {
		return rankReport{}, errors.Join(err, peer.Close())
	}
	logger.Info("rank started", "rank", rank, "listen", l.Addr().String(), "subdomain", p.String())
	r, err := runRank(p, peer, iterations, logger)
	return r, errors.Join(err, peer.Close())
}

func renderLayout(layout *decomposition.Layout) error {
	data := pterm.TableData{{"rank", "proc", "local size", "first corner", "L", "R", "B", "T", "F", "K"}}
	for _, sd := range layout.Subdomains {
		row := []string{
			strconv.Itoa(sd.Rank),
			fmt.Sprint(sd.ProcIndices),
			fmt.Sprint(sd.LocalSize),
			fmt.Sprint(sd.FirstCorner),
		}
		for _, nb := range sd.Neighbors {
			row = append(row, strconv.Itoa(nb))
		}
		data = append(data, row)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderReports(reports []rankReport) error {
	data := pterm.TableData{{"rank", "pressure", "velocity", "sent", "received", "|p|", "max |u|", "mismatches"}}
	for _, r := range reports {
		data = append(data, []string{
			strconv.Itoa(r.Rank),
			strconv.Itoa(r.Stats.PressureExchanges),
			strconv.Itoa(r.Stats.VelocityExchanges),
			strconv.FormatInt(r.Stats.ValuesSent, 10),
			strconv.FormatInt(r.Stats.ValuesReceived, 10),
			strconv.FormatFloat(r.PressureNorm, 'g', 6, 64),
			strconv.FormatFloat(r.VelocityMax, 'g', 6, 64),
			strconv.Itoa(r.Mismatches),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
