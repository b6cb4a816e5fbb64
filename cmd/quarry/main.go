package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrydata/quarry/pkg/config"
	"github.com/quarrydata/quarry/pkg/logger"
	"github.com/quarrydata/quarry/pkg/objectstore"
	s3store "github.com/quarrydata/quarry/pkg/objectstore/s3"
	"github.com/quarrydata/quarry/pkg/scan"
)

var version = "0.1.0"

// storeFlags collects the connection overrides shared by every command.
type storeFlags struct {
	configFile string
	storeName  string

	endpoint      string
	region        string
	accessKey     string
	secretKey     string
	sessionToken  string
	pathStyle     bool
	retryAttempts int
	noRetry       bool
	opTimeout     time.Duration
	readTimeout   time.Duration
}

// resolve builds the store configuration: a named entry from the config
// file when given, command-line overrides on top, environment as the
// last resort for credentials.
func (f *storeFlags) resolve() (config.StoreConfig, error) {
	cfg := config.NewStoreConfig("default")

	if f.configFile != "" {
		stores, err := config.LoadStores(f.configFile)
		if err != nil {
			return cfg, err
		}
		found := false
		for _, sc := range stores {
			if sc.Name == f.storeName || (f.storeName == "" && len(stores) == 1) {
				cfg = sc
				found = true
				break
			}
		}
		if !found {
			return cfg, fmt.Errorf("store %q not found in %s", f.storeName, f.configFile)
		}
	}

	if f.endpoint != "" {
		cfg.Endpoint = f.endpoint
	}
	if f.region != "" {
		cfg.Region = f.region
	}
	if f.accessKey != "" {
		cfg.Credentials.AccessKeyID = f.accessKey
		cfg.Credentials.SecretAccessKey = f.secretKey
		cfg.Credentials.SessionToken = f.sessionToken
		cfg.Credentials.Provider = "Static"
	}
	if f.pathStyle {
		cfg.UsePathStyle = true
	}
	if f.retryAttempts > 0 {
		cfg.Retry.MaxAttempts = f.retryAttempts
	}
	if f.noRetry {
		cfg.Retry.Disabled = true
	}
	if f.opTimeout > 0 {
		cfg.OperationTimeout = f.opTimeout
	}
	if f.readTimeout > 0 {
		cfg.ReadTimeout = f.readTimeout
	}

	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&f.configFile, "config", "", "Path to stores YAML file")
	cmd.PersistentFlags().StringVar(&f.storeName, "store", "", "Store name within the config file")
	cmd.PersistentFlags().StringVar(&f.endpoint, "endpoint", "", "Endpoint override for S3-compatible targets (e.g. http://localhost:9000)")
	cmd.PersistentFlags().StringVar(&f.region, "region", "", "Region override")
	cmd.PersistentFlags().StringVar(&f.accessKey, "access-key", os.Getenv("QUARRY_ACCESS_KEY"), "Static access key")
	cmd.PersistentFlags().StringVar(&f.secretKey, "secret-key", os.Getenv("QUARRY_SECRET_KEY"), "Static secret key")
	cmd.PersistentFlags().StringVar(&f.sessionToken, "session-token", "", "Static session token")
	cmd.PersistentFlags().BoolVar(&f.pathStyle, "path-style", false, "Force path-style addressing (MinIO, Ceph)")
	cmd.PersistentFlags().IntVar(&f.retryAttempts, "retry-attempts", 0, "Provider client retry attempts (0 = SDK default)")
	cmd.PersistentFlags().BoolVar(&f.noRetry, "no-retry", false, "Disable provider client retries")
	cmd.PersistentFlags().DurationVar(&f.opTimeout, "op-timeout", 0, "Listing and upload timeout")
	cmd.PersistentFlags().DurationVar(&f.readTimeout, "read-timeout", 0, "Bounded wait ceiling for a single range read")
}

func newStore(f *storeFlags) (*s3store.Store, error) {
	cfg, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return s3store.New(cfg)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := &storeFlags{}
	var logLevel string

	root := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - object store access for columnar query engines",
		Long: `Quarry lists, reads, and scans objects in S3-compatible storage through
the capability contract consumed by columnar query engines: prefix listing,
sized readers, and exact byte-range reads.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Init(logger.Config{Level: logLevel, Encoding: "json"})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	flags.register(root)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Quarry v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var jsonOutput bool
	lsCmd := &cobra.Command{
		Use:   "ls <prefix>",
		Short: "List objects under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}
			return runList(cmd.Context(), store, args[0], jsonOutput)
		},
	}
	lsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit one JSON object per entry")
	root.AddCommand(lsCmd)

	var start uint64
	var length int
	catCmd := &cobra.Command{
		Use:   "cat <container/key>",
		Short: "Read an object (or a byte range of it) to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}
			return runCat(cmd.Context(), store, args[0], start, length, os.Stdout)
		},
	}
	catCmd.Flags().Uint64Var(&start, "start", 0, "Range start offset")
	catCmd.Flags().IntVar(&length, "length", 0, "Range length in bytes (0 = to end)")
	root.AddCommand(catCmd)

	root.AddCommand(&cobra.Command{
		Use:   "scan <prefix>",
		Short: "Scan Parquet objects under a prefix, emitting rows as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), store, args[0])
		},
	})

	var contentType string
	putCmd := &cobra.Command{
		Use:   "put <file> <container/key>",
		Short: "Upload a local file to an object path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newStore(flags)
			if err != nil {
				return err
			}
			return runPut(cmd.Context(), store, args[0], args[1], contentType)
		},
	}
	putCmd.Flags().StringVar(&contentType, "content-type", "", "Content type of the uploaded object")
	root.AddCommand(putCmd)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func runList(ctx context.Context, store objectstore.Store, prefix string, jsonOutput bool) error {
	entries, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, meta := range entries {
		if jsonOutput {
			line, err := json.Marshal(meta)
			if err != nil {
				return err
			}
			fmt.Println(string(line))
			continue
		}

		modified := ""
		if meta.LastModified != nil {
			modified = meta.LastModified.UTC().Format(time.RFC3339)
		}
		fmt.Printf("%12d  %-20s  %s\n", meta.Size, modified, meta.Path)
	}

	return nil
}

func runCat(ctx context.Context, store objectstore.Store, path string, start uint64, length int, out io.Writer) error {
	entries, err := store.List(ctx, path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("object %q not found", path)
	}

	// An exact key wins over entries whose keys merely extend the path
	meta := entries[0]
	for _, e := range entries {
		if e.Path == path {
			meta = e
			break
		}
	}

	reader, err := store.Reader(meta)
	if err != nil {
		return err
	}

	buf, err := reader.ReadRange(start, length)
	if err != nil {
		return err
	}

	// Whole-object reads of .gz keys are decompressed transparently
	if strings.HasSuffix(meta.Path, ".gz") && start == 0 && length == 0 {
		gz, err := gzip.NewReader(bytes.NewReader(buf))
		if err != nil {
			return err
		}
		defer gz.Close()
		_, err = io.Copy(out, gz)
		return err
	}

	_, err = out.Write(buf)
	return err
}

func runScan(ctx context.Context, store objectstore.Store, prefix string) error {
	encoder := json.NewEncoder(os.Stdout)
	return scan.ScanPrefix(ctx, store, prefix, func(meta objectstore.ObjectMeta, row scan.Row) error {
		return encoder.Encode(row)
	})
}

func runPut(ctx context.Context, store *s3store.Store, file, path, contentType string) error {
	f, err := os.Open(file) //nolint:gosec // G304: path supplied by the operator
	if err != nil {
		return err
	}
	defer f.Close()

	if err := store.Put(ctx, path, f, contentType); err != nil {
		return err
	}

	fmt.Printf("uploaded %s to %s\n", file, path)
	return nil
}
