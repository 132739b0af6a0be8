// Package main provides the gridloom CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/gridloom/gridloom/pkg/appstate"
	"github.com/gridloom/gridloom/pkg/backend"
	"github.com/gridloom/gridloom/pkg/config"
	"github.com/gridloom/gridloom/pkg/edit"
	"github.com/gridloom/gridloom/pkg/grid"
	"github.com/gridloom/gridloom/pkg/remote"
	"github.com/gridloom/gridloom/pkg/rows"
	"github.com/gridloom/gridloom/pkg/schema"
	"github.com/gridloom/gridloom/pkg/source"
	"github.com/gridloom/gridloom/pkg/window"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "gridloom",
		Short: "Gridloom - Editable Data Grid Engine",
		Long: `Gridloom is a data-grid engine for tabular backends: draft rows,
cell editing, batch submission, and windowed row loading behind a
virtualized-grid callback contract.

Features:
  • Draft rows appended after server rows, submitted independently
  • Paginated and infinite-scroll data windows
  • Cell rendering driven by table metadata (relations as bubbles)
  • Embedded badger-backed store or remote GraphQL backend`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gridloom v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted grid session against the embedded store",
		Long: `Seed the embedded store with sample tables, then walk the grid
through its lifecycle: load a window, append draft rows, edit cells,
submit drafts (including a partial failure), and edit a server row.`,
		RunE: runDemo,
	}
	demoCmd.Flags().String("config", getEnvStr("GRIDLOOM_CONFIG", ""), "Config file path (optional)")
	demoCmd.Flags().String("data-dir", getEnvStr("GRIDLOOM_DATA_DIR", ""), "Badger data directory (empty = in-memory)")
	demoCmd.Flags().Bool("infinite", getEnvBool("GRIDLOOM_INFINITE", false), "Use the infinite-scroll window strategy")
	demoCmd.Flags().Int("page-size", getEnvInt("GRIDLOOM_PAGE_SIZE", 0), "Page size override (0 = config value)")
	rootCmd.AddCommand(demoCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect [table]",
		Short: "Print a table's metadata and first page of rows",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	inspectCmd.Flags().String("config", getEnvStr("GRIDLOOM_CONFIG", ""), "Config file path (optional)")
	inspectCmd.Flags().String("endpoint", getEnvStr("GRIDLOOM_ENDPOINT", ""), "Remote GraphQL endpoint (overrides config)")
	inspectCmd.Flags().Int("limit", 10, "Rows to print")
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// debugEnabled is set from the configured log level before a command runs.
var debugEnabled bool

// debugf prints a diagnostic line when the log level allows DEBUG output.
func debugf(format string, args ...any) {
	if debugEnabled {
		fmt.Printf("   🔍 "+format+"\n", args...)
	}
}

// consoleFeedback renders operation progress the way a toast stack would.
type consoleFeedback struct {
	nextID int
}

func (f *consoleFeedback) OnStart(kind string, total int) string {
	f.nextID++
	id := fmt.Sprintf("op-%d", f.nextID)
	fmt.Printf("   ⏳ [%s] %s (%d items)\n", id, kind, total)
	return id
}

func (f *consoleFeedback) OnProgress(opID string, completed, failed int) {
	fmt.Printf("   ·  [%s] %d done, %d failed\n", opID, completed, failed)
}

func (f *consoleFeedback) OnComplete(opID string, status source.OpStatus, message string) {
	switch status {
	case source.OpSucceeded:
		color.Green("   ✅ [%s] %s", opID, message)
	case source.OpPartial:
		color.Yellow("   ⚠️  [%s] %s", opID, message)
	default:
		color.Red("   ❌ [%s] %s", opID, message)
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	infinite, _ := cmd.Flags().GetBool("infinite")
	pageSize, _ := cmd.Flags().GetInt("page-size")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Backend.DataDir = dataDir
	}
	if infinite {
		cfg.Window.Infinite = true
	}
	if pageSize > 0 {
		cfg.Window.PageSize = pageSize
	}
	debugEnabled = cfg.Logging.Enables("DEBUG")

	tables := cfg.TableMetas()
	if len(tables) == 0 {
		tables = demoTables()
	}

	fmt.Printf("🚀 Gridloom demo v%s\n", version)
	if cfg.Backend.DataDir == "" {
		fmt.Println("   Store:  in-memory badger")
	} else {
		fmt.Printf("   Store:  %s\n", cfg.Backend.DataDir)
	}
	if cfg.Window.Infinite {
		fmt.Printf("   Window: infinite (chunk size %d)\n", cfg.Window.ChunkSize)
	} else {
		fmt.Printf("   Window: paginated (page size %d)\n", cfg.Window.PageSize)
	}
	fmt.Println()

	var store *backend.Store
	if cfg.Backend.DataDir == "" {
		store, err = backend.OpenInMemory(tables)
	} else {
		store, err = backend.Open(cfg.Backend.DataDir, tables)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	authorIDs, err := seedDemoRows(ctx, store)
	if err != nil {
		return err
	}
	debugf("seeded %d tables, %d authors", len(tables), len(authorIDs))

	state := appstate.NewContainer(appstate.State{
		ActiveTable:          "articles",
		Environment:          "demo",
		PageSize:             cfg.Window.PageSize,
		RelationDisplayCount: cfg.Grid.RelationDisplayCount,
	})
	snap := state.Snapshot()

	cache := schema.NewCache(store)
	if _, err := cache.Populate(ctx, snap.ActiveTable); err != nil {
		return err
	}

	win, err := openWindow(ctx, cfg, store, snap.ActiveTable)
	if err != nil {
		return err
	}
	debugf("window ready: %d server rows of %d total", win.ServerRowCount(), win.TotalCount())

	g, err := grid.New(grid.Options{
		TableKey:             snap.ActiveTable,
		MetaCache:            cache,
		Drafts:               rows.NewDraftStore(),
		Window:               win,
		Mutator:              store,
		Feedback:             &consoleFeedback{},
		RelationDisplayCount: snap.RelationDisplayCount,
	})
	if err != nil {
		return err
	}
	defer g.Close()

	fmt.Println("📄 Initial window:")
	printGrid(g)

	// Append two drafts: one complete, one pointing its author relation at
	// the other draft's id, which cannot be saved until that row exists.
	fmt.Println("✏️  Appending two draft rows...")
	first, err := g.OnRowAppended()
	if err != nil {
		return err
	}
	second, err := g.OnRowAppended()
	if err != nil {
		return err
	}
	serverCount := win.ServerRowCount()
	edits := []struct {
		row   int
		col   string
		value any
	}{
		{serverCount, "title", "Draft rows in practice"},
		{serverCount, "author", authorIDs[0]},
		{serverCount + 1, "title", "Windows and chunks"},
		{serverCount + 1, "author", first},
	}
	cols := columnIndex(g)
	for _, e := range edits {
		if err := g.OnCellEdited(ctx, edit.Coord{Col: cols[e.col], Row: e.row}, e.value); err != nil {
			return err
		}
	}
	printGrid(g)

	// Submit the referencing row first: its author still names an unsaved
	// draft at that point, so it fails validation while the other row lands.
	fmt.Println("📤 Submitting both drafts (one references a row not saved yet):")
	if err := g.SubmitDraftRows(ctx, []string{second, first}); err != nil {
		color.Yellow("   batch error: %v", err)
	}
	if err := reloadWindow(ctx, win); err != nil {
		return err
	}
	printGrid(g)
	for _, region := range g.HighlightRegions() {
		fmt.Printf("   highlight row %d: %s\n", region.Row, region.Style)
	}
	fmt.Println()

	fmt.Println("🔧 Fixing the failed draft and retrying:")
	retryRow := win.ServerRowCount()
	if err := g.OnCellEdited(ctx, edit.Coord{Col: cols["author"], Row: retryRow}, authorIDs[1]); err != nil {
		return err
	}
	if err := g.SubmitSingleDraftRow(ctx, second); err != nil {
		return err
	}
	if err := reloadWindow(ctx, win); err != nil {
		return err
	}
	printGrid(g)

	fmt.Println("✏️  Editing a server cell in place:")
	if err := g.OnCellEdited(ctx, edit.Coord{Col: cols["title"], Row: 0}, "Hello, grid (edited)"); err != nil {
		return err
	}
	printGrid(g)

	color.Green("✅ Demo complete")
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	tableKey := args[0]
	configPath, _ := cmd.Flags().GetString("config")
	endpoint, _ := cmd.Flags().GetString("endpoint")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if endpoint != "" {
		cfg.Backend.Mode = "remote"
		cfg.Backend.Endpoint = endpoint
	}
	debugEnabled = cfg.Logging.Enables("DEBUG")
	debugf("backend mode: %s", cfg.Backend.Mode)

	ctx := context.Background()

	var (
		fetcher source.RowFetcher
		lookup  schema.MetadataService
	)
	switch cfg.Backend.Mode {
	case "remote":
		client, err := remote.NewClient(cfg.Backend.Endpoint)
		if err != nil {
			return err
		}
		fetcher, lookup = client, client
	default:
		store, err := backend.Open(cfg.Backend.DataDir, cfg.TableMetas())
		if err != nil {
			return err
		}
		defer store.Close()
		fetcher, lookup = store, store
	}

	meta, err := lookup.TableMeta(ctx, tableKey)
	if err != nil {
		return err
	}
	fmt.Printf("📋 %s (%d columns, %d relations)\n", meta.TableKey, len(meta.Fields), len(meta.Relations))
	for _, key := range meta.ColumnOrder {
		f := meta.Fields[key]
		flags := ""
		if f.Nullable {
			flags += " nullable"
		}
		if f.ServerManaged {
			flags += " server-managed"
		}
		if rel, ok := meta.Relation(key); ok {
			flags += fmt.Sprintf(" → %s (%s)", rel.TargetTable, rel.Kind)
		}
		fmt.Printf("   %-16s %s%s\n", key, f.Type, flags)
	}

	data, total, err := fetcher.FetchPage(ctx, tableKey, limit, 0)
	if err != nil {
		return err
	}
	fmt.Printf("\n📄 %d of %d rows:\n", len(data), total)
	for _, row := range data {
		parts := make([]string, 0, len(meta.ColumnOrder))
		for _, key := range meta.ColumnOrder {
			parts = append(parts, fmt.Sprintf("%v", row[key]))
		}
		fmt.Println("   " + strings.Join(parts, " | "))
	}
	return nil
}

// demoTables is the built-in schema used when the config declares none.
func demoTables() []*schema.TableMeta {
	return []*schema.TableMeta{
		{
			TableKey:    "authors",
			ColumnOrder: []string{"id", "name"},
			Fields: map[string]schema.Field{
				"id":   {Key: "id", Type: schema.FieldUUID, ServerManaged: true},
				"name": {Key: "name", Type: schema.FieldText},
			},
		},
		{
			TableKey:    "articles",
			ColumnOrder: []string{"id", "title", "published", "author", "createdAt"},
			Fields: map[string]schema.Field{
				"id":        {Key: "id", Type: schema.FieldUUID, ServerManaged: true},
				"title":     {Key: "title", Type: schema.FieldText},
				"published": {Key: "published", Type: schema.FieldBoolean},
				"author":    {Key: "author", Type: schema.FieldRelation, Nullable: true},
				"createdAt": {Key: "createdAt", Type: schema.FieldTimestamp, ServerManaged: true},
			},
			Relations: map[string]schema.Relation{
				"author": {
					Field:         "author",
					Kind:          schema.BelongsTo,
					TargetTable:   "authors",
					ForeignKeys:   []string{"author_id"},
					DisplayFields: []string{"name"},
				},
			},
		},
	}
}

func seedDemoRows(ctx context.Context, store *backend.Store) ([]string, error) {
	authorIDs := make([]string, 0, 2)
	for _, name := range []string{"Ada", "Grace"} {
		created, err := store.Create(ctx, "authors", rows.RowData{"name": name})
		if err != nil {
			return nil, err
		}
		authorIDs = append(authorIDs, created["id"].(string))
	}
	seed := []rows.RowData{
		{"title": "Hello, grid", "published": true, "author": authorIDs[0]},
		{"title": "Relations as bubbles", "published": false, "author": authorIDs[1]},
		{"title": "Paging the backlog", "published": true, "author": authorIDs[0]},
	}
	for _, row := range seed {
		if _, err := store.Create(ctx, "articles", row); err != nil {
			return nil, err
		}
	}
	return authorIDs, nil
}

func openWindow(ctx context.Context, cfg *config.Config, fetcher source.RowFetcher, tableKey string) (window.Window, error) {
	if cfg.Window.Infinite {
		w := window.NewInfinite(fetcher, tableKey, cfg.Window.ChunkSize)
		if err := w.Init(ctx); err != nil {
			return nil, err
		}
		return w, nil
	}
	w := window.NewPaginated(fetcher, tableKey, cfg.Window.PageSize)
	if err := w.Load(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func reloadWindow(ctx context.Context, win window.Window) error {
	win.Invalidate()
	switch w := win.(type) {
	case *window.Paginated:
		return w.Load(ctx)
	case *window.Infinite:
		return w.Init(ctx)
	}
	return nil
}

func printGrid(g *grid.Grid) {
	cols := g.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Key
	}
	fmt.Println("   " + strings.Join(headers, " | "))
	fmt.Println("   " + strings.Repeat("-", len(strings.Join(headers, " | "))))

	highlights := make(map[int]string)
	for _, h := range g.HighlightRegions() {
		highlights[h.Row] = h.Style
	}

	for row := 0; row < g.RowCount(); row++ {
		values := make([]string, len(cols))
		for col := range cols {
			cell := g.CellAt(col, row)
			switch cell.Kind {
			case grid.CellLoading:
				values[col] = "…"
			case grid.CellBubble:
				values[col] = "[" + strings.Join(cell.Bubble, ", ") + "]"
			default:
				values[col] = cell.Display
			}
		}
		line := "   " + strings.Join(values, " | ")
		switch highlights[row] {
		case "error":
			color.Red("%s", line)
		case "draft":
			color.Cyan("%s", line)
		default:
			fmt.Println(line)
		}
	}
	fmt.Println()
}

func columnIndex(g *grid.Grid) map[string]int {
	idx := make(map[string]int)
	for i, c := range g.Columns() {
		idx[c.Key] = i
	}
	return idx
}

// getEnvStr returns environment variable value or default
func getEnvStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultVal
}
