package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/arborlabs/arbor/client"
	"github.com/arborlabs/arbor/config"
	"github.com/arborlabs/arbor/drive"
	"github.com/arborlabs/arbor/lock"
	"github.com/arborlabs/arbor/models"
	"github.com/arborlabs/arbor/nodes"
)

var (
	logger     *slog.Logger
	configPath string
	sortFlag   string
	userFlag   string
	clientFlag string
	retryFlag  bool
)

func init() {
	logOpts := &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}
	handler := slog.NewTextHandler(os.Stderr, logOpts)
	logger = slog.New(handler)

	flag.StringVar(&configPath, "config", "arbor.yaml", "Path to the drive configuration file")
	flag.StringVar(&sortFlag, "sort", "name", "Listing order: name, createdAt, modifiedAt, size")
	flag.StringVar(&userFlag, "user", "", "User identity for lock operations. Defaults to ARBOR_USER.")
	flag.StringVar(&clientFlag, "client", "", "Client/session id for lock operations. Derived when empty.")
	flag.BoolVar(&retryFlag, "retry", false, "Retry rate-limited requests, honoring the store's retry-after hint")
}

func getService(cfg *config.Config) (*drive.Service, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cli, err := client.New(&client.Config{
		Endpoint:   cfg.Endpoint,
		Owner:      cfg.Owner,
		APIKey:     cfg.APIKey,
		SkipVerify: cfg.SkipVerify,
		Timeout:    cfg.Timeout,
		Logger:     logger,
		RateLimit:  cfg.RateLimiter.Limit,
		Burst:      cfg.RateLimiter.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	repo := nodes.New(cli, nodes.NewCache(cfg.CacheTTL), logger)
	return drive.New(repo, logger), nil
}

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	if command == "generate-config" {
		handleGenerateConfig()
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "path", configPath, "error", err)
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	svc, err := getService(cfg)
	if err != nil {
		logger.Error("Failed to initialize drive service", "error", err)
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch command {
	case "ls":
		handleLs(ctx, svc, cmdArgs)
	case "tree-path":
		handlePath(ctx, svc, cmdArgs)
	case "mkdir":
		handleMkdir(ctx, svc, cmdArgs)
	case "ln":
		handleLn(ctx, svc, cmdArgs)
	case "mv":
		handleMv(ctx, svc, cmdArgs)
	case "rm":
		handleRm(ctx, svc, cmdArgs)
	case "put":
		handlePut(ctx, svc, cmdArgs)
	case "cat":
		handleCat(ctx, svc, cmdArgs)
	case "lock":
		handleLock(ctx, svc, cmdArgs)
	case "unlock":
		handleUnlock(ctx, svc, cmdArgs)
	case "usage":
		handleUsage(ctx, svc)
	default:
		logger.Error("Unknown command", "command", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: arborc [flags] <command> [args...]\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  ls [folderID]                 list the root, or a folder's children\n")
	fmt.Fprintf(os.Stderr, "  tree-path <nodeID>            print a node's ancestor chain\n")
	fmt.Fprintf(os.Stderr, "  mkdir <name> [parentID]\n")
	fmt.Fprintf(os.Stderr, "  ln <name> <targetID> [parentID]\n")
	fmt.Fprintf(os.Stderr, "  mv <nodeID> <fromParentID|-> <toParentID|->\n")
	fmt.Fprintf(os.Stderr, "  rm <nodeID> [parentID]\n")
	fmt.Fprintf(os.Stderr, "  put <name> <file|-> [parentID]   save text as a new file\n")
	fmt.Fprintf(os.Stderr, "  cat <nodeID>                  print a file's text\n")
	fmt.Fprintf(os.Stderr, "  lock <nodeID>\n")
	fmt.Fprintf(os.Stderr, "  unlock <nodeID>\n")
	fmt.Fprintf(os.Stderr, "  usage                         total stored file bytes\n")
	fmt.Fprintf(os.Stderr, "  generate-config               print a starter config file\n")
}

func fail(msg string, err error) {
	logger.Error(msg, "error", err)
	color.Red("Error: %v", err)
	os.Exit(1)
}

func identity() (string, string) {
	user := userFlag
	if user == "" {
		user = os.Getenv("ARBOR_USER")
	}
	if user == "" {
		fail("lock operation requires a user", fmt.Errorf("set --user or ARBOR_USER"))
	}
	return user, lock.DeriveClientID(clientFlag)
}

// run executes fn, optionally retrying rate-limited calls when --retry is
// set.
func run[R any](ctx context.Context, fn func(ctx context.Context) (R, error)) (R, error) {
	if retryFlag {
		return client.WithRetryAfter(ctx, logger, func() (R, error) { return fn(ctx) })
	}
	return fn(ctx)
}

func runVoid(ctx context.Context, fn func(ctx context.Context) error) error {
	if retryFlag {
		return client.WithRetryAfterVoid(ctx, logger, func() error { return fn(ctx) })
	}
	return fn(ctx)
}

func printNode(node models.Node) {
	name := node.Name
	switch node.Type {
	case models.NodeTypeDirectory:
		name = color.BlueString(name + "/")
	case models.NodeTypeSymlink:
		name = color.CyanString(name + " -> " + node.SymlinkTarget())
	}
	lockNote := ""
	if state := lock.StateOf(&node); state.Status == models.LockStatusActive {
		lockNote = color.YellowString("  [locked by %s]", state.User)
	}
	fmt.Printf("%-10s %-10s %10s  %s%s\n",
		node.ID, node.Type, drive.FormatBytes(node.Size), name, lockNote)
}

func handleLs(ctx context.Context, svc *drive.Service, args []string) {
	mode := drive.SortMode(sortFlag)
	list, err := run(ctx, func(ctx context.Context) ([]models.Node, error) {
		if len(args) == 0 {
			return svc.ListRoot(ctx, mode)
		}
		return svc.ListFolder(ctx, args[0], mode)
	})
	if err != nil {
		fail("List failed", err)
	}
	for _, node := range list {
		printNode(node)
	}
}

func handlePath(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) != 1 {
		logger.Error("tree-path: requires <nodeID>")
		printUsage()
		os.Exit(1)
	}
	chain, err := run(ctx, func(ctx context.Context) ([]models.Node, error) {
		return svc.Breadcrumbs(ctx, args[0])
	})
	if err != nil {
		fail("Path resolution failed", err)
	}
	parts := make([]string, 0, len(chain))
	for _, node := range chain {
		parts = append(parts, node.Name)
	}
	fmt.Println("/" + strings.Join(parts, "/"))
}

func handleMkdir(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) < 1 || len(args) > 2 {
		logger.Error("mkdir: requires <name> [parentID]")
		printUsage()
		os.Exit(1)
	}
	parentID := ""
	if len(args) == 2 {
		parentID = args[1]
	}
	node, err := run(ctx, func(ctx context.Context) (*models.Node, error) {
		return svc.CreateFolder(ctx, args[0], parentID)
	})
	if err != nil {
		fail("Folder creation failed", err)
	}
	color.Green("Created folder %s (%s)", node.Name, node.ID)
}

func handleLn(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) < 2 || len(args) > 3 {
		logger.Error("ln: requires <name> <targetID> [parentID]")
		printUsage()
		os.Exit(1)
	}
	parentID := ""
	if len(args) == 3 {
		parentID = args[2]
	}
	node, err := run(ctx, func(ctx context.Context) (*models.Node, error) {
		return svc.CreateSymlink(ctx, args[0], args[1], parentID)
	})
	if err != nil {
		fail("Symlink creation failed", err)
	}
	color.Green("Created symlink %s (%s) -> %s", node.Name, node.ID, args[1])
}

// parentArg maps the CLI's "-" placeholder onto "root".
func parentArg(arg string) string {
	if arg == "-" {
		return ""
	}
	return arg
}

func handleMv(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) != 3 {
		logger.Error("mv: requires <nodeID> <fromParentID|-> <toParentID|->")
		printUsage()
		os.Exit(1)
	}
	err := runVoid(ctx, func(ctx context.Context) error {
		return svc.MoveOrRename(ctx, drive.MoveRequest{
			NodeID:          args[0],
			HasNewParent:    true,
			CurrentParentID: parentArg(args[1]),
			NewParentID:     parentArg(args[2]),
		})
	})
	if err != nil {
		fail("Move failed", err)
	}
	color.Green("Moved %s", args[0])
}

func handleRm(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) < 1 || len(args) > 2 {
		logger.Error("rm: requires <nodeID> [parentID]")
		printUsage()
		os.Exit(1)
	}
	parentID := ""
	if len(args) == 2 {
		parentID = args[1]
	}
	err := runVoid(ctx, func(ctx context.Context) error {
		return svc.DeleteNode(ctx, args[0], parentID)
	})
	if err != nil {
		fail("Delete failed", err)
	}
	color.Green("Deleted %s", args[0])
}

func handlePut(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) < 2 || len(args) > 3 {
		logger.Error("put: requires <name> <file|-> [parentID]")
		printUsage()
		os.Exit(1)
	}
	var text []byte
	var err error
	if args[1] == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(args[1])
	}
	if err != nil {
		fail("Failed to read input", err)
	}
	parentID := ""
	if len(args) == 3 {
		parentID = args[2]
	}
	user, clientID := identity()
	node, err := run(ctx, func(ctx context.Context) (*models.Node, error) {
		return svc.Save(ctx, drive.SaveRequest{
			Name:     args[0],
			Text:     string(text),
			ParentID: parentID,
			User:     user,
			ClientID: clientID,
		})
	})
	if err != nil {
		fail("Save failed", err)
	}
	color.Green("Saved %s (%s), %s", node.Name, node.ID, drive.FormatBytes(node.Size))
}

func handleCat(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) != 1 {
		logger.Error("cat: requires <nodeID>")
		printUsage()
		os.Exit(1)
	}
	chain, err := run(ctx, func(ctx context.Context) ([]models.Node, error) {
		return svc.Breadcrumbs(ctx, args[0])
	})
	if err != nil {
		fail("Fetch failed", err)
	}
	node := chain[len(chain)-1]
	if node.IsSymlink() {
		resolved, err := svc.ResolveSymlink(ctx, &node)
		if err != nil {
			fail("Broken symlink", err)
		}
		node = *resolved
	}
	if !node.IsFile() {
		fail("Not a file", fmt.Errorf("%s is a %s", node.ID, node.Type))
	}
	fmt.Print(node.Text)
}

func handleLock(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) != 1 {
		logger.Error("lock: requires <nodeID>")
		printUsage()
		os.Exit(1)
	}
	user, clientID := identity()
	err := runVoid(ctx, func(ctx context.Context) error {
		return svc.AcquireLock(ctx, args[0], user, clientID)
	})
	if err != nil {
		fail("Lock failed", err)
	}
	color.Green("Locked %s as %s (client %s)", args[0], user, clientID)
}

func handleUnlock(ctx context.Context, svc *drive.Service, args []string) {
	if len(args) != 1 {
		logger.Error("unlock: requires <nodeID>")
		printUsage()
		os.Exit(1)
	}
	user, clientID := identity()
	err := runVoid(ctx, func(ctx context.Context) error {
		return svc.ReleaseLock(ctx, args[0], user, clientID)
	})
	if err != nil {
		fail("Unlock failed", err)
	}
	color.Green("Unlocked %s", args[0])
}

func handleUsage(ctx context.Context, svc *drive.Service) {
	total, err := run(ctx, func(ctx context.Context) (int64, error) {
		return svc.Usage(ctx)
	})
	if err != nil {
		fail("Usage failed", err)
	}
	fmt.Println(drive.FormatBytes(total))
}

func handleGenerateConfig() {
	out, err := yaml.Marshal(config.GenerateConfig())
	if err != nil {
		fail("Failed to render config", err)
	}
	fmt.Print(string(out))
}
