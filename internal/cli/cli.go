// ============================================================================
// zwalfs CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: User-facing command line interface over the zone-append WAL file
// system, built on Cobra.
//
// Command Structure:
//   zwalctl                         # Root command
//   ├── open   --config, -c        # Open the backend, report zone layout
//   ├── write  --file, --wal       # Append the --data bytes to a (WAL) file
//   ├── read   --offset, --length  # Positioned read, WAL-aware
//   ├── recover                    # Run partial-tail + WAL chunk recovery
//   └── stat                       # Print file/zone bookkeeping
//
// Configuration:
//   YAML config file (internal/config), default path "configs/default.yaml".
//   device.path == "" or "mem://" selects the in-memory backend used by the
//   test suite and this CLI's demo mode; anything else is handed to the
//   real Linux backend (build-tag gated).
//
// Metrics:
//   "open" starts the Prometheus /metrics server when metrics.enabled is
//   set, then blocks on SIGINT/SIGTERM for a graceful shutdown.
// ============================================================================

package cli

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zoneio/zwalfs/internal/allocator"
	"github.com/zoneio/zwalfs/internal/config"
	"github.com/zoneio/zwalfs/internal/fileview"
	"github.com/zoneio/zwalfs/internal/metrics"
	"github.com/zoneio/zwalfs/internal/zbd"
	"github.com/zoneio/zwalfs/internal/zonefile"
)

var configFile string

// BuildCLI assembles the zwalctl command tree.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "zwalctl",
		Short:   "zwalctl: zoned-block-device WAL file system control plane",
		Version: "1.0.0",
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	root.AddCommand(buildOpenCommand())
	root.AddCommand(buildWriteCommand())
	root.AddCommand(buildReadCommand())
	root.AddCommand(buildRecoverCommand())
	root.AddCommand(buildStatCommand())
	return root
}

// session bundles the pieces every subcommand needs: backend, allocator,
// and the config that sized them.
type session struct {
	cfg     *config.Config
	backend zbd.Backend
	alloc   *allocator.Allocator
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(configFile); err != nil {
		return config.Default(), nil
	}
	return config.Load(configFile)
}

// openSession loads config, opens the backend (scheduler check happens
// inside Backend.Open), and builds an allocator over every reported zone,
// splitting the pool roughly in half between WAL and IO use.
func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var backend zbd.Backend
	if cfg.Device.Path == "" || strings.HasPrefix(cfg.Device.Path, "mem://") {
		backend = zbd.NewMemBackend(32, cfg.Device.ZoneSize, cfg.Device.ZoneSize, cfg.Device.BlockSize)
	} else {
		backend, err = zbd.OpenReal(cfg.Device.Path, cfg.Device.BlockSize, cfg.Device.ZoneSize)
		if err != nil {
			return nil, err
		}
	}

	if _, _, err := backend.Open(false, true); err != nil {
		return nil, fmt.Errorf("zwalctl: backend open: %w", err)
	}

	alloc := allocator.New(backend)
	zones, err := backend.ListZones()
	if err != nil {
		return nil, fmt.Errorf("zwalctl: list zones: %w", err)
	}
	for i, z := range zones {
		if i%2 == 0 {
			alloc.AddWALZone(z)
		} else {
			alloc.AddIOZone(z)
		}
	}

	return &session{cfg: cfg, backend: backend, alloc: alloc}, nil
}

func buildOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open",
		Short: "Open the backend, report zone layout, and optionally serve metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			zones, err := sess.backend.ListZones()
			if err != nil {
				return err
			}
			log.Printf("opened backend: %d zones, block_size=%d, zone_size=%d\n",
				len(zones), sess.cfg.Device.BlockSize, sess.cfg.Device.ZoneSize)

			if !sess.cfg.Metrics.Enabled {
				return nil
			}

			go func() {
				log.Printf("metrics server listening on :%d/metrics\n", sess.cfg.Metrics.Port)
				if err := metrics.StartServer(sess.cfg.Metrics.Port); err != nil {
					log.Printf("metrics server error: %v\n", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Println("shutting down")
			return sess.backend.Close()
		},
	}
}

func buildWriteCommand() *cobra.Command {
	var (
		path    string
		fileID  uint64
		isWAL   bool
		dataHex string
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Append data to a file, creating it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			f := zonefile.New(sess.cfg, sess.alloc, fileID, path, isWAL, isWAL)
			w, err := fileview.NewWritableFile(f, sess.cfg)
			if err != nil {
				return err
			}
			if err := w.Append([]byte(dataHex)); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			log.Printf("wrote %d bytes to %s (file_id=%d)\n", len(dataHex), path, fileID)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "link name, e.g. wal-0001.log")
	cmd.Flags().Uint64Var(&fileID, "id", 1, "file id")
	cmd.Flags().BoolVar(&isWAL, "wal", false, "treat as a WAL file (sparse, sequence-numbered)")
	cmd.Flags().StringVar(&dataHex, "data", "", "raw payload bytes to append")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildReadCommand() *cobra.Command {
	var (
		path   string
		fileID uint64
		isWAL  bool
		offset uint64
		length int
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Positioned read from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			f := zonefile.New(sess.cfg, sess.alloc, fileID, path, isWAL, isWAL)
			r := fileview.NewRandomAccessFile(f)
			out, err := r.Read(offset, length)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "link name")
	cmd.Flags().Uint64Var(&fileID, "id", 1, "file id")
	cmd.Flags().BoolVar(&isWAL, "wal", false, "treat as a WAL file")
	cmd.Flags().Uint64Var(&offset, "offset", 0, "byte offset")
	cmd.Flags().IntVar(&length, "length", 0, "bytes to read")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildRecoverCommand() *cobra.Command {
	var (
		path   string
		fileID uint64
		isWAL  bool
	)
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Run partial-tail recovery and (for WAL files) chunked recovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			f := zonefile.New(sess.cfg, sess.alloc, fileID, path, isWAL, isWAL)
			if err := f.Recover(); err != nil {
				return err
			}
			if isWAL {
				if err := f.TryRecoverWAL(0); err != nil {
					return err
				}
			}
			st := f.Stat()
			log.Printf("recovered %s: size=%d extents=%d wal_seq=%d\n", path, st.FileSize, st.NumExtents, st.WALSeq)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "link name")
	cmd.Flags().Uint64Var(&fileID, "id", 1, "file id")
	cmd.Flags().BoolVar(&isWAL, "wal", false, "treat as a WAL file")
	cmd.MarkFlagRequired("file")
	return cmd
}

func buildStatCommand() *cobra.Command {
	var (
		path   string
		fileID uint64
		isWAL  bool
	)
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Print file bookkeeping: size, extent count, padding, WAL sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			f := zonefile.New(sess.cfg, sess.alloc, fileID, path, isWAL, isWAL)
			st := f.Stat()
			fmt.Printf("file_id=%d size=%d extents=%d pad_bytes=%d is_wal=%v wal_seq=%d wal_live_blocks=%d\n",
				st.FileID, st.FileSize, st.NumExtents, st.PadBytes, st.IsWAL, st.WALSeq, st.WALLiveBlocks)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "link name")
	cmd.Flags().Uint64Var(&fileID, "id", 1, "file id")
	cmd.Flags().BoolVar(&isWAL, "wal", false, "treat as a WAL file")
	cmd.MarkFlagRequired("file")
	return cmd
}
