// CloudVault CLI
//
// A local file vault: files live in an embedded SQLite store with
// secondary indices, can be searched and sorted, shared with optional
// passwords/expiry/access ceilings, and exported as self-contained
// HTML share documents.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudvault/cloudvault/internal/codec"
	"github.com/cloudvault/cloudvault/internal/config"
	"github.com/cloudvault/cloudvault/internal/events"
	"github.com/cloudvault/cloudvault/internal/ingest"
	"github.com/cloudvault/cloudvault/internal/logging"
	"github.com/cloudvault/cloudvault/internal/metrics"
	"github.com/cloudvault/cloudvault/internal/model"
	"github.com/cloudvault/cloudvault/internal/query"
	"github.com/cloudvault/cloudvault/internal/share"
	"github.com/cloudvault/cloudvault/internal/store"
)

const usageText = `Usage: cloudvault <command> [flags]

Commands:
  add <path>...       ingest files into the vault
  ls                  list/search files
  rm <file-id>        delete a file and its shares
  rename <file-id>    rename a file
  tag <file-id>       replace a file's tags
  describe <file-id>  set a file's description
  copy <file-id>      duplicate a file
  stats               vault statistics
  share <file-id>     create a share
  shares              list shares and share statistics
  access <share-id>   validate and record an access
  revoke <share-id>   revoke a share
  sweep               remove expired shares (once, or as a daemon)
  artifact <file-id>  write the self-contained share document
  export <path>       export the vault to JSON
  import <path>       import a vault JSON export
`

type app struct {
	cfg    *config.Config
	store  *store.Store
	shares *share.Manager
	ingest *ingest.Pipeline
	events *events.Broadcaster
	comp   codec.Compressor
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logging.Fatal("store open failed", zap.Error(err))
	}
	defer st.Close()

	a := &app{
		cfg:    cfg,
		store:  st,
		events: events.NewBroadcaster(),
		comp:   codec.GzipCompressor{},
	}
	a.shares = share.NewManager(st, a.comp, cfg.ShareBaseURL, cfg.ArtifactMaxBytes)
	a.ingest = ingest.New(st, a.events, cfg.ThumbnailMaxPx)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	if err := a.run(ctx, cmd, args); err != nil {
		logging.Error("command failed", zap.String("command", cmd), zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "add":
		return a.cmdAdd(ctx, args)
	case "ls", "search":
		return a.cmdList(ctx, args)
	case "rm":
		return a.cmdRemove(ctx, args)
	case "rename":
		return a.cmdRename(ctx, args)
	case "tag":
		return a.cmdTag(ctx, args)
	case "describe":
		return a.cmdDescribe(ctx, args)
	case "copy":
		return a.cmdCopy(ctx, args)
	case "stats":
		return a.cmdStats(ctx, args)
	case "share":
		return a.cmdShare(ctx, args)
	case "shares":
		return a.cmdShares(ctx, args)
	case "access":
		return a.cmdAccess(ctx, args)
	case "revoke":
		return a.cmdRevoke(ctx, args)
	case "sweep":
		return a.cmdSweep(ctx, args)
	case "artifact":
		return a.cmdArtifact(ctx, args)
	case "export":
		return a.cmdExport(ctx, args)
	case "import":
		return a.cmdImport(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	declaredType := fs.String("type", "", "declared MIME type (overrides extension lookup)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("add: at least one path required")
	}

	// Show per-file progress as it is published.
	sub := a.events.Subscribe()
	defer a.events.Unsubscribe(sub)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range sub {
			if p.Status == model.StatusFailed {
				fmt.Printf("  %s: %s (%s)\n", p.Name, p.Status, p.Error)
			} else {
				fmt.Printf("  %s: %d%% %s\n", p.Name, p.Percent, p.Status)
			}
		}
	}()

	var items []ingest.Item
	var files []*os.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)
		items = append(items, ingest.Item{
			Name:         baseName(path),
			DeclaredType: *declaredType,
			Reader:       f,
		})
	}

	records := a.ingest.IngestBatch(ctx, items)
	a.events.Unsubscribe(sub)
	<-done

	for _, rec := range records {
		fmt.Printf("added %s  %s  %s  %s\n", rec.ID, rec.Name, rec.Type, humanize.Bytes(uint64(rec.Size)))
	}
	if len(records) < len(items) {
		return fmt.Errorf("add: %d of %d files failed", len(items)-len(records), len(items))
	}
	return nil
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	keyword := fs.String("q", "", "keyword over name/description/tags")
	typeFilter := fs.String("type", "", "MIME type filters, comma separated (supports category/*)")
	tags := fs.String("tags", "", "tag filters, comma separated (any match)")
	after := fs.String("after", "", "uploaded at or after (RFC3339)")
	before := fs.String("before", "", "uploaded at or before (RFC3339)")
	minSize := fs.Int64("min-size", -1, "minimum size in bytes")
	maxSize := fs.Int64("max-size", -1, "maximum size in bytes")
	sortBy := fs.String("sort", "uploadTime", "sort field: name|size|uploadTime|type")
	desc := fs.Bool("desc", false, "sort descending")
	asJSON := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)

	filter := model.SearchFilter{Keyword: *keyword}
	if *typeFilter != "" {
		filter.Types = splitList(*typeFilter)
	}
	if *tags != "" {
		filter.Tags = splitList(*tags)
	}
	if *after != "" || *before != "" {
		dr := &model.DateRange{}
		var err error
		if *after != "" {
			if dr.Start, err = time.Parse(time.RFC3339, *after); err != nil {
				return fmt.Errorf("parse -after: %w", err)
			}
		}
		if *before != "" {
			if dr.End, err = time.Parse(time.RFC3339, *before); err != nil {
				return fmt.Errorf("parse -before: %w", err)
			}
		} else {
			dr.End = time.Now()
		}
		filter.DateRange = dr
	}
	if *minSize >= 0 || *maxSize >= 0 {
		sr := &model.SizeRange{Min: 0, Max: 1 << 62}
		if *minSize >= 0 {
			sr.Min = *minSize
		}
		if *maxSize >= 0 {
			sr.Max = *maxSize
		}
		filter.SizeRange = sr
	}

	sortOpt := model.SortOption{Field: model.SortField(*sortBy), Descending: *desc}
	switch sortOpt.Field {
	case model.SortByName, model.SortBySize, model.SortByUploadTime, model.SortByType:
	default:
		return fmt.Errorf("unknown sort field %q", *sortBy)
	}

	all, err := a.store.GetAllFiles(ctx)
	if err != nil {
		return err
	}
	results := query.Evaluate(all, filter, sortOpt)
	if err := a.shares.AttachCurrentShare(ctx, results...); err != nil {
		return err
	}

	if *asJSON {
		return printJSON(results)
	}
	for _, f := range results {
		info := codec.LookupTypeInfo(f.Type)
		shared := " "
		if f.IsShared {
			shared = "S"
		}
		fmt.Printf("%s %s %s  %-10s %-30s %s\n",
			info.Icon, shared, f.ID, humanize.Bytes(uint64(f.Size)), f.Name, f.UploadTime.Format(time.RFC3339))
	}
	fmt.Printf("%d file(s)\n", len(results))
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rm: exactly one file id required")
	}
	if err := a.shares.DeleteFile(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("deleted", args[0])
	return nil
}

func (a *app) cmdRename(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rename", flag.ExitOnError)
	name := fs.String("name", "", "new file name")
	fs.Parse(args)
	if fs.NArg() != 1 || *name == "" {
		return fmt.Errorf("rename: usage: rename -name <new-name> <file-id>")
	}
	return a.store.RenameFile(ctx, fs.Arg(0), *name)
}

func (a *app) cmdTag(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	tags := fs.String("tags", "", "comma separated tags (replaces existing)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("tag: usage: tag -tags a,b,c <file-id>")
	}
	return a.store.SetFileTags(ctx, fs.Arg(0), splitList(*tags))
}

func (a *app) cmdDescribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	text := fs.String("text", "", "description text")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("describe: usage: describe -text ... <file-id>")
	}
	return a.store.SetFileDescription(ctx, fs.Arg(0), *text)
}

func (a *app) cmdCopy(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("copy: exactly one file id required")
	}
	rec, err := a.store.CopyFile(ctx, args[0], uuid.NewString(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("copied to %s  %s\n", rec.ID, rec.Name)
	return nil
}

func (a *app) cmdStats(ctx context.Context, args []string) error {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("files:     %d\n", stats.TotalFiles)
	fmt.Printf("size:      %s\n", humanize.Bytes(uint64(stats.TotalSize)))
	fmt.Printf("images:    %d\n", stats.ImageCount)
	fmt.Printf("documents: %d\n", stats.DocumentCount)
	fmt.Printf("videos:    %d\n", stats.VideoCount)
	fmt.Printf("audio:     %d\n", stats.AudioCount)
	fmt.Printf("other:     %d\n", stats.OtherCount)
	return nil
}

func (a *app) cmdShare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("share", flag.ExitOnError)
	password := fs.String("password", "", "optional access password")
	expires := fs.String("expires", "", "expiry time (RFC3339) or duration (e.g. 72h)")
	maxAccess := fs.Int64("max-access", 0, "access ceiling (0 = unlimited)")
	private := fs.Bool("private", false, "mark the share non-public")
	qrOut := fs.String("qr", "", "write the QR code PNG to this path")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("share: exactly one file id required")
	}

	opts := model.ShareOptions{Password: *password}
	if *expires != "" {
		t, err := parseExpiry(*expires)
		if err != nil {
			return err
		}
		opts.ExpiresAt = &t
	}
	if *maxAccess > 0 {
		opts.MaxAccess = maxAccess
	}
	if *private {
		pub := false
		opts.IsPublic = &pub
	}

	rec, err := a.shares.Create(ctx, fs.Arg(0), opts)
	if err != nil {
		return err
	}
	fmt.Println("share id: ", rec.ID)
	fmt.Println("share url:", rec.ShareURL)
	if *qrOut != "" && rec.QRCode != nil {
		if err := os.WriteFile(*qrOut, rec.QRCode, 0o644); err != nil {
			return fmt.Errorf("write qr: %w", err)
		}
		fmt.Println("qr code:  ", *qrOut)
	}
	return nil
}

func (a *app) cmdShares(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("shares", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "emit JSON")
	fs.Parse(args)

	active, err := a.shares.ListActive(ctx)
	if err != nil {
		return err
	}
	expired, err := a.shares.ListExpired(ctx)
	if err != nil {
		return err
	}
	stats, err := a.shares.Stats(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(map[string]any{"active": active, "expired": expired, "stats": stats})
	}
	printShare := func(sh *model.ShareRecord, state string) {
		limit := "unlimited"
		if sh.MaxAccess != nil {
			limit = fmt.Sprintf("%d", *sh.MaxAccess)
		}
		fmt.Printf("%s  file=%s  %s  accesses=%d/%s\n", sh.ID, sh.FileID, state, sh.AccessCount, limit)
	}
	for _, sh := range active {
		printShare(sh, "active")
	}
	for _, sh := range expired {
		printShare(sh, "expired")
	}
	fmt.Printf("%d total, %d active, %d expired, %d accesses\n",
		stats.Total, stats.Active, stats.Expired, stats.TotalAccess)
	return nil
}

func (a *app) cmdAccess(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("access", flag.ExitOnError)
	password := fs.String("password", "", "supplied password")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("access: exactly one share id required")
	}

	v, err := a.shares.ValidateAccessByID(ctx, fs.Arg(0), *password)
	if err != nil {
		return err
	}
	if !v.Valid {
		fmt.Println("denied:", v.Reason)
		return nil
	}
	if err := a.shares.RecordAccess(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Println("granted")
	return nil
}

func (a *app) cmdRevoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("revoke: exactly one share id required")
	}
	if err := a.shares.Revoke(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("revoked", args[0])
	return nil
}

func (a *app) cmdSweep(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	interval := fs.Duration("interval", 0, "run as a daemon, sweeping at this interval")
	fs.Parse(args)

	if *interval <= 0 {
		removed, err := a.shares.SweepExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("swept %d expired share(s)\n", removed)
		return nil
	}

	if a.cfg.MetricsAddr != "" {
		go serveMetrics(a.cfg.MetricsAddr)
	}
	logging.Info("sweep daemon started", zap.Duration("interval", *interval))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info("sweep daemon stopping")
			return nil
		case <-ticker.C:
			if _, err := a.shares.SweepExpired(ctx); err != nil {
				logging.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func (a *app) cmdArtifact(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("artifact", flag.ExitOnError)
	out := fs.String("o", "", "output path (default <name>.share.html)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("artifact: exactly one file id required")
	}

	file, err := a.store.GetFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	art, err := a.shares.BuildArtifact(ctx, file.ID)
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = file.Name + ".share.html"
	}
	if err := os.WriteFile(path, art.Document, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	fmt.Printf("wrote %s (%s, payload %s, compressed=%v)\n",
		path, humanize.Bytes(uint64(len(art.Document))), humanize.Bytes(uint64(art.PayloadSize)), art.Compressed)
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("export: exactly one output path required")
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()
	if err := a.store.Export(ctx, f); err != nil {
		return err
	}
	fmt.Println("exported to", args[0])
	return nil
}

func (a *app) cmdImport(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import: exactly one input path required")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	if err := a.store.Import(ctx, f); err != nil {
		return err
	}
	fmt.Println("imported from", args[0])
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logging.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logging.Error("metrics server failed", zap.Error(err))
	}
}

func parseExpiry(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry %q: not RFC3339 or a duration", s)
	}
	return time.Now().Add(d), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
